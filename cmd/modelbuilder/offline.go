// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/modelbuilder/pkg/logging"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/config"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/storage"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/validation"
)

// offlineSession imports path into a memory-only service so the offline
// commands run the same pipeline as the server.
func offlineSession(ctx context.Context, path string) (*modelbuilder.Service, *modelbuilder.ImportResponse, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(logging.Config{Level: logging.LevelWarn, Service: "modelbuilder"}).Slog()
	store := storage.NewStore(storage.NewMemoryTier(1), nil, storage.StoreConfig{}, logger)
	limits := cfg.Limits
	limits.ImportsPerMinute = 0
	svc := modelbuilder.NewService(store, limits, modelbuilder.WithLogger(logger))

	created, err := svc.CreateSession(ctx, strings.TrimSuffix(filepath.Base(path), ".json"))
	if err != nil {
		return nil, nil, err
	}
	resp, err := svc.Import(ctx, created.SessionID, data, nil)
	if err != nil {
		return nil, nil, err
	}
	return svc, resp, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	_, resp, err := offlineSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d objects serialized, %.3f MB\n", okStyle.Render("Imported"), resp.SerializedCount, resp.TotalMB)
	printValidation(out, resp.Validation.Errors)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, resp, err := offlineSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if resp.Validation.OK() {
		fmt.Fprintln(out, okStyle.Render("Model is valid"))
		return nil
	}
	printValidation(out, resp.Validation.Errors)
	return resp.Validation.Err()
}

func runDaily(cmd *cobra.Command, args []string) error {
	svc, resp, err := offlineSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	daily, err := svc.DailyTimeseries(cmd.Context(), resp.SessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(daily)
	}
	printDaily(out, daily)
	return nil
}

func printDaily(out io.Writer, daily *modelbuilder.DailyResponse) {
	if len(daily.Series) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No usage pattern has hourly starts."))
		return
	}
	for _, s := range daily.Series {
		fmt.Fprintf(out, "%s %s\n", headerStyle.Render(s.Name), dimStyle.Render(fmt.Sprintf("(%s, %s)", s.Series.Unit, s.Series.Aggregation)))
		for i, v := range s.Series.Values {
			day := s.Series.Start.AddDate(0, 0, i)
			fmt.Fprintf(out, "  %s  %g\n", day.Format("2006-01-02"), v)
		}
	}
}

func printValidation(out io.Writer, errs []validation.StructuralError) {
	for _, e := range errs {
		line := e.Message
		if len(e.Names) > 0 {
			line += ": " + strings.Join(e.Names, ", ")
		}
		fmt.Fprintf(out, "%s %s\n", errorStyle.Render("✗"), line)
	}
}
