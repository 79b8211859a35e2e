// cmd/tools/registry-updater/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"personal-color-workers/pkg/registry"
)

const defaultPath = "configs/activity-registry.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAdd(args []string) error {
	cmd := flag.NewFlagSet("add", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	id := cmd.String("id", "", "Activity ID (e.g., analyze-color-parallel)")
	displayName := cmd.String("displayName", "", "Display name")
	description := cmd.String("description", "", "Description")
	category := cmd.String("category", "", "Category (e.g., color-analysis)")
	taskType := cmd.String("taskType", "", "Zeebe task type, defaults to the ID")
	version := cmd.String("version", "1.0.0", "Version")
	status := cmd.String("status", registry.StatusPlanned, "Implementation status (planned, in-progress, completed, verified)")
	timeout := cmd.String("timeout", "10s", "Job timeout")
	cmd.Parse(args)

	if *id == "" || *displayName == "" || *category == "" {
		cmd.Usage()
		return errors.New("id, displayName and category are required")
	}
	if *taskType == "" {
		*taskType = *id
	}
	if !registry.IsValidStatus(*status) {
		return fmt.Errorf("unknown implementation status %q", *status)
	}

	reg, err := registry.LoadRegistry(*path)
	if errors.Is(err, fs.ErrNotExist) {
		reg, err = &registry.ActivityRegistry{Version: "1.0.0"}, nil
	}
	if err != nil {
		return err
	}

	err = reg.Add(registry.Activity{
		ID:                   *id,
		DisplayName:          *displayName,
		Description:          *description,
		Category:             *category,
		Version:              *version,
		TaskType:             *taskType,
		ImplementationStatus: *status,
		ErrorCodes:           []string{},
		Timeout:              *timeout,
		Workflows:            []string{},
		Tags:                 []string{},
	})
	if err != nil {
		return err
	}
	if err := reg.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Added activity: %s\n", *id)
	return nil
}

func runUpdate(args []string) error {
	cmd := flag.NewFlagSet("update", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	id := cmd.String("id", "", "Activity ID to update")
	field := cmd.String("field", "", "Field to update (status, version, displayName, description, category, timeout, retries)")
	value := cmd.String("value", "", "New value for the field")
	cmd.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		cmd.Usage()
		return errors.New("id, field and value are required")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	if err := reg.Update(*id, *field, *value); err != nil {
		return err
	}
	if err := reg.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Updated activity %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func runValidate(args []string) error {
	cmd := flag.NewFlagSet("validate", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	cmd.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}
	if len(reg.Activities) == 0 {
		return errors.New("registry contains no activities")
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	fmt.Printf("Registry validation passed (%d activities).\n", len(reg.Activities))
	return nil
}

func runList(args []string) error {
	cmd := flag.NewFlagSet("list", flag.ExitOnError)
	path := cmd.String("path", defaultPath, "Path to registry file")
	cmd.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK TYPE\tSTATUS\tVERSION\tTIMEOUT")
	for _, a := range reg.Activities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.TaskType, a.ImplementationStatus, a.Version, a.Timeout)
	}
	return w.Flush()
}

func help() {
	fmt.Println(`Activity registry tool

Usage:
  registry-updater <command> [flags]

Commands:
  add       Register a new activity
  update    Change one field of an activity
  validate  Check ids, task types, statuses and schemas
  list      Print the registered activities

Run 'registry-updater <command> -h' for command flags.`)
}
