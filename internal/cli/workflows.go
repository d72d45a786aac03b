package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/zowe/zowe-cli-sub009/internal/repository"
	"github.com/zowe/zowe-cli-sub009/internal/services"
	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// target selects a workflow by key argument or by --workflow-name.
type target struct {
	name     string
	archived bool
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.name, "workflow-name", "n", "", "Select the workflow by its exact name instead of its key")
}

func (a *App) resolve(ctx context.Context, t target, args []string) (string, error) {
	switch {
	case t.name != "" && len(args) > 0:
		return "", errors.New("specify either a workflow key or --workflow-name, not both")
	case t.name != "":
		resolve := a.service.ResolveKeyByName
		if t.archived {
			resolve = a.service.ResolveArchivedKeyByName
		}
		key, found, err := resolve(ctx, t.name)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("no workflow named %q", t.name)
		}
		return key, nil
	case len(args) == 1:
		return args[0], nil
	}
	return "", errors.New("a workflow key or --workflow-name is required")
}

func (a *App) createCommand() *cobra.Command {
	var (
		req       workflow.CreateRequest
		variables string
		assign    bool
		deleteJob bool
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a workflow instance from a definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req.WorkflowName = args[0]

			vars, err := workflow.ParseProperties(variables)
			if err != nil {
				return err
			}
			req.Variables = vars
			req.AssignToOwner = &assign
			req.DeleteCompletedJobs = &deleteJob

			if overwrite {
				key, found, err := a.service.ResolveKeyByName(ctx, req.WorkflowName)
				if err != nil {
					return err
				}
				if found {
					if err := a.service.DeleteWorkflow(ctx, key); err != nil {
						return err
					}
				}
			}

			created, err := a.service.CreateWorkflow(ctx, req)
			if err != nil {
				return err
			}
			return a.print(created, table{
				headers: []string{"KEY", "ID", "VERSION", "VENDOR"},
				rows:    [][]string{{created.WorkflowKey, created.WorkflowID, created.WorkflowVersion, created.Vendor}},
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.WorkflowDefinitionFile, "definition-file", "d", "", "Path of the workflow definition file on the host")
	f.StringVar(&req.System, "system", "", "System where the workflow runs")
	f.StringVar(&req.Owner, "owner", "", "Owner user ID")
	f.StringVar(&variables, "variables", "", "Variables as name1=value1,name2=value2")
	f.StringVar(&req.VariableInputFile, "variable-input-file", "", "Path of a variable input file on the host")
	f.StringVar(&req.AccessType, "access-type", workflow.DefaultAccessType, "Public, Restricted or Private")
	f.BoolVar(&assign, "assign-to-owner", workflow.DefaultAssignToOwner, "Assign all steps to the owner")
	f.BoolVar(&deleteJob, "delete-completed", workflow.DefaultDeleteComplete, "Delete job output of completed steps")
	f.StringVar(&req.JobStatement, "job-statement", "", "JOB statement for submitted JCL")
	f.StringVar(&req.AccountInfo, "account-info", "", "Account information for the JOB statement")
	f.StringVar(&req.Comments, "comments", "", "Comments for the workflow")
	f.StringVar(&req.ResolveGlobalConflictByUsing, "resolve-global-conflict", "", "global or input")
	f.BoolVar(&overwrite, "overwrite", false, "Delete an existing workflow with the same name first")
	_ = cmd.MarkFlagRequired("definition-file")
	_ = cmd.MarkFlagRequired("system")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func waitFlags(cmd *cobra.Command, opts *services.WaitOptions) {
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Give up waiting after this long (default from polling.timeout)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "Initial polling interval (default from polling.interval)")
}

func (a *App) progress(key string) func(services.State, *models.WorkflowInstance) {
	return func(state services.State, snap *models.WorkflowInstance) {
		current := ""
		if snap.AutomationStatus != nil {
			current = snap.AutomationStatus.CurrentStepName
		}
		a.logger.Debug("poll", "workflow_key", key, "state", state, "status", snap.StatusName,
			"current_step", current, "percent_complete", snap.PercentComplete)
	}
}

func (a *App) startCommand() *cobra.Command {
	var (
		t          target
		opts       workflow.StartOptions
		subsequent bool
		wait       bool
		waitOpts   services.WaitOptions
	)
	cmd := &cobra.Command{
		Use:   "start [KEY]",
		Short: "Start a workflow, optionally from one step, and optionally wait",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key, err := a.resolve(ctx, t, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("perform-subsequent") {
				opts.PerformSubsequent = &subsequent
			}
			if !wait {
				if err := a.service.StartWorkflow(ctx, key, opts); err != nil {
					return err
				}
				return a.print(map[string]string{"workflowKey": key, "status": "started"}, message("Workflow %s started", key))
			}

			waitOpts.StepName = opts.StepName
			waitOpts.PerformSubsequent = opts.Subsequent()
			waitOpts.OnSnapshot = a.progress(key)
			res, err := a.service.StartAndWait(ctx, key, opts, waitOpts)
			if err != nil {
				return err
			}
			return a.printResults(res)
		},
	}
	t.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&opts.StepName, "step-name", "", "Start from this step")
	f.BoolVar(&subsequent, "perform-subsequent", false, "Also run the steps after --step-name")
	f.StringVar(&opts.ResolveConflictByUsing, "resolve-conflict", "", "outputFileValue, existingValue or leaveConflict")
	f.BoolVarP(&wait, "wait", "w", false, "Wait for the workflow or step to finish")
	waitFlags(cmd, &waitOpts)
	return cmd
}

func (a *App) waitCommand() *cobra.Command {
	var (
		t    target
		opts services.WaitOptions
	)
	cmd := &cobra.Command{
		Use:   "wait [KEY...]",
		Short: "Wait for running workflows or a step to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) > 1 {
				if t.name != "" {
					return errors.New("--workflow-name selects a single workflow")
				}
				results, err := a.service.WaitAll(ctx, args, opts)
				if err != nil {
					return err
				}
				return a.printResults(results...)
			}

			key, err := a.resolve(ctx, t, args)
			if err != nil {
				return err
			}
			opts.OnSnapshot = a.progress(key)
			res, err := a.service.WaitForCompletion(ctx, key, opts)
			if err != nil {
				return err
			}
			return a.printResults(res)
		},
	}
	t.bind(cmd)
	cmd.Flags().StringVar(&opts.StepName, "step-name", "", "Wait for this step only")
	cmd.Flags().BoolVar(&opts.PerformSubsequent, "perform-subsequent", false, "Wait for the steps after --step-name too")
	waitFlags(cmd, &opts)
	return cmd
}

func (a *App) printResults(results ...*services.Result) error {
	t := table{headers: []string{"KEY", "STATE", "STATUS", "STEP", "RC", "POLLS", "ELAPSED"}}
	for _, r := range results {
		status := ""
		if r.Snapshot != nil {
			status = r.Snapshot.StatusName
		}
		t.rows = append(t.rows, []string{
			r.Key, string(r.State), status, r.StepName, r.ReturnCode,
			strconv.Itoa(r.Polls), r.Elapsed.Round(time.Millisecond).String(),
		})
	}
	if len(results) == 1 {
		return a.print(results[0], t)
	}
	return a.print(results, t)
}

func (a *App) stepsCommand() *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "steps [KEY]",
		Short: "List the steps of a workflow with their state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.resolve(cmd.Context(), t, args)
			if err != nil {
				return err
			}
			summaries, err := a.service.GetStepSummaries(cmd.Context(), key)
			if err != nil {
				return err
			}
			tbl := table{headers: []string{"STEP", "NAME", "STATE", "JOBID / STATUS"}}
			for _, s := range summaries {
				tbl.rows = append(tbl.rows, []string{s.StepNumber, s.Name, s.State, s.Misc})
			}
			return a.print(summaries, tbl)
		},
	}
	t.bind(cmd)
	return cmd
}

func (a *App) propertiesCommand() *cobra.Command {
	var (
		t    target
		opts workflow.PropertiesOptions
	)
	cmd := &cobra.Command{
		Use:   "properties [KEY]",
		Short: "Show the properties of a workflow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.resolve(cmd.Context(), t, args)
			if err != nil {
				return err
			}
			snap, err := a.service.GetProperties(cmd.Context(), key, opts)
			if err != nil {
				return err
			}
			current := ""
			if snap.AutomationStatus != nil {
				current = snap.AutomationStatus.CurrentStepName
			}
			return a.print(snap, table{
				headers: []string{"KEY", "NAME", "STATUS", "OWNER", "SYSTEM", "CURRENT STEP", "COMPLETE"},
				rows: [][]string{{
					snap.WorkflowKey, snap.WorkflowName, snap.StatusName, snap.Owner, snap.System,
					current, strconv.Itoa(snap.PercentComplete) + "%",
				}},
			})
		},
	}
	t.bind(cmd)
	cmd.Flags().BoolVar(&opts.IncludeSteps, "steps", false, "Include the step tree")
	cmd.Flags().BoolVar(&opts.IncludeVariables, "variables", false, "Include workflow variables")
	return cmd
}

func (a *App) listCommand() *cobra.Command {
	var f workflow.FilterSet
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active workflows",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.service.ListWorkflows(cmd.Context(), f)
			if err != nil {
				return err
			}
			tbl := table{headers: []string{"KEY", "NAME", "STATUS", "OWNER", "SYSTEM"}}
			for _, w := range list {
				tbl.rows = append(tbl.rows, []string{w.WorkflowKey, w.WorkflowName, w.StatusName, w.Owner, w.System})
			}
			return a.print(list, tbl)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.Name, "name", "", "Workflow name, * and ? are wildcards")
	flags.StringVar(&f.Category, "category", "", "general or configuration")
	flags.StringVar(&f.System, "system", "", "System")
	flags.StringVar(&f.Owner, "owner", "", "Owner user ID")
	flags.StringVar(&f.Vendor, "vendor", "", "Vendor")
	flags.StringVar(&f.StatusName, "status", "", "Workflow status")
	return cmd
}

func (a *App) listArchivedCommand() *cobra.Command {
	var f workflow.FilterSet
	cmd := &cobra.Command{
		Use:   "list-archived",
		Short: "List archived workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.service.ListArchivedWorkflows(cmd.Context(), f)
			if err != nil {
				return err
			}
			tbl := table{headers: []string{"KEY", "NAME", "URI"}}
			for _, w := range list {
				tbl.rows = append(tbl.rows, []string{w.WorkflowKey, w.WorkflowName, w.ArchivedInstanceURI})
			}
			return a.print(list, tbl)
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "Workflow name, * and ? are wildcards")
	cmd.Flags().StringVar(&f.OrderBy, "order-by", "", "asc or desc by archive time")
	cmd.Flags().StringVar(&f.View, "view", "", "server or domain")
	return cmd
}

func (a *App) keyCommand() *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "key NAME",
		Short: "Print the key of the workflow with exactly this name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.resolve(cmd.Context(), target{name: args[0], archived: archived}, nil)
			if err != nil {
				return err
			}
			return a.print(map[string]string{"workflowKey": key}, message("%s", key))
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "Search archived workflows")
	return cmd
}

func (a *App) cancelCommand() *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "cancel [KEY]",
		Short: "Cancel a workflow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.resolve(cmd.Context(), t, args)
			if err != nil {
				return err
			}
			canceled, err := a.service.CancelWorkflow(cmd.Context(), key)
			if err != nil {
				return err
			}
			return a.print(canceled, message("Workflow %s canceled", canceled.WorkflowName))
		},
	}
	t.bind(cmd)
	return cmd
}

func (a *App) archiveCommand() *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "archive [KEY]",
		Short: "Archive a workflow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.resolve(cmd.Context(), t, args)
			if err != nil {
				return err
			}
			archived, err := a.service.ArchiveWorkflow(cmd.Context(), key)
			if err != nil {
				return err
			}
			return a.print(archived, message("Workflow %s archived", archived.WorkflowKey))
		},
	}
	t.bind(cmd)
	return cmd
}

func (a *App) deleteCommand() *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "delete [KEY]",
		Short: "Delete an active workflow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.resolve(cmd.Context(), t, args)
			if err != nil {
				return err
			}
			if err := a.service.DeleteWorkflow(cmd.Context(), key); err != nil {
				return err
			}
			return a.print(map[string]string{"workflowKey": key, "status": "deleted"}, message("Workflow %s deleted", key))
		},
	}
	t.bind(cmd)
	return cmd
}

func (a *App) deleteArchivedCommand() *cobra.Command {
	t := target{archived: true}
	cmd := &cobra.Command{
		Use:   "delete-archived [KEY]",
		Short: "Delete an archived workflow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.resolve(cmd.Context(), t, args)
			if err != nil {
				return err
			}
			if err := a.service.DeleteArchivedWorkflow(cmd.Context(), key); err != nil {
				return err
			}
			return a.print(map[string]string{"workflowKey": key, "status": "deleted"}, message("Archived workflow %s deleted", key))
		},
	}
	t.bind(cmd)
	return cmd
}

func (a *App) definitionCommand() *cobra.Command {
	var opts workflow.PropertiesOptions
	cmd := &cobra.Command{
		Use:   "definition PATH",
		Short: "Show a workflow definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.service.GetDefinition(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			tbl := table{
				headers: []string{"ID", "VERSION", "VENDOR", "STEPS", "VARIABLES"},
				rows: [][]string{{
					def.WorkflowID, def.WorkflowVersion, def.Vendor,
					strconv.Itoa(len(def.Steps)), strconv.Itoa(len(def.Variables)),
				}},
			}
			return a.print(def, tbl)
		},
	}
	cmd.Flags().BoolVar(&opts.IncludeSteps, "steps", false, "Include step definitions")
	cmd.Flags().BoolVar(&opts.IncludeVariables, "variables", false, "Include variable definitions")
	return cmd
}

func (a *App) runsCommand() *cobra.Command {
	var filter repository.RunFilter
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded wait outcomes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := a.service.Runs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tbl := table{headers: []string{"ID", "KEY", "MODE", "STATE", "STATUS", "RC", "POLLS", "FINISHED"}}
			for _, r := range runs {
				tbl.rows = append(tbl.rows, []string{
					r.ID, r.WorkflowKey, r.Mode, r.State, r.StatusName, r.ReturnCode,
					strconv.Itoa(r.Polls), r.FinishedAt.Format(time.RFC3339),
				})
			}
			return a.print(runs, tbl)
		},
	}
	cmd.Flags().StringVar(&filter.WorkflowKey, "key", "", "Only runs of this workflow")
	cmd.Flags().StringVar(&filter.State, "state", "", "Only runs that ended in this state")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum number of runs")
	return cmd
}
