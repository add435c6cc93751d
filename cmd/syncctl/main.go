/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command syncctl is a read-only inspector for a running syncd's
// SAVE_STATE file (§6), grounded on cmd/ptpcheck's cobra-root-plus-
// subcommand layout and its tablewriter-rendered "sources" table.
// ptpcheck talks to ptp4l over a live management socket; syncd instead
// periodically renders its state to an INI file (§6's persistent-state
// design), so syncctl's "status" subcommand simply reads and renders
// that file rather than opening a control-plane connection.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-ini/ini"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var stateFileFlag string

var rootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "Inspect a running syncd's synchronization state",
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-module synchronization state from the SAVE_STATE file",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&stateFileFlag, "state-file", "f", "/var/lib/syncd/state", "path to syncd's SAVE_STATE file")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	f, err := ini.Load(stateFileFlag)
	if err != nil {
		return fmt.Errorf("loading state file %s: %w", stateFileFlag, err)
	}

	names := make([]string, 0, len(f.Sections()))
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		names = append(names, sec.Name())
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"module", "state", "alarms", "in-sync", "offset(ns)", "freq(ppb)", "interface"})
	for _, name := range names {
		sec := f.Section(name)
		table.Append([]string{
			name,
			sec.Key("state").String(),
			sec.Key("alarms").String(),
			sec.Key("in-sync").String(),
			sec.Key("offset-from-master").String(),
			sec.Key("freq-adjustment-ppb").String(),
			sec.Key("interface").String(),
		})
	}
	table.Render()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
