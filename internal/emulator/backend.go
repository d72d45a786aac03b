// Package emulator is an in-memory z/OSMF workflow service. It implements
// the same backend contract as the HTTP client and is used by the emulator
// server and in tests.
//
// Automation advances when the workflow is observed: every properties read
// returns the current snapshot and then completes the running step. A
// started single-step workflow therefore reads as in progress once and
// complete on the next read.
package emulator

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// DefaultReturnCode is the return code given to steps that complete
// normally.
const DefaultReturnCode = "0000"

// Definition is a workflow definition file known to the emulator.
type Definition struct {
	Path       string
	Definition models.WorkflowDefinition
	// ReturnCodes overrides the return code of named steps. Any code other
	// than DefaultReturnCode fails the step and stops automation.
	ReturnCodes map[string]string
}

type instance struct {
	data      models.WorkflowInstance
	leaves    []string
	next      int
	stopAfter int // leaf index after which automation stops, -1 for none
	rcs       map[string]string
	created   time.Time
}

type archivedEntry struct {
	summary  models.ArchivedWorkflowSummary
	archived time.Time
}

// Backend is an in-memory workflow service. It is safe for concurrent use.
type Backend struct {
	mu          sync.Mutex
	workflows   map[string]*instance
	archived    map[string]*archivedEntry
	definitions map[string]Definition
	newKey      func() string
	now         func() time.Time
	jobSeq      int
}

// Option configures a Backend.
type Option func(*Backend)

// WithKeyGenerator replaces the UUID key generator.
func WithKeyGenerator(f func() string) Option {
	return func(b *Backend) { b.newKey = f }
}

// WithClock replaces time.Now.
func WithClock(f func() time.Time) Option {
	return func(b *Backend) { b.now = f }
}

// WithDefinition registers a definition file.
func WithDefinition(def Definition) Option {
	return func(b *Backend) { b.definitions[def.Path] = def }
}

// New creates an empty Backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		workflows:   make(map[string]*instance),
		archived:    make(map[string]*archivedEntry),
		definitions: make(map[string]Definition),
		newKey:      func() string { return uuid.New().String() },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SequentialKeys returns a key generator yielding k1, k2, ...
func SequentialKeys() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("k%d", n)
	}
}

// AddDefinition registers or replaces a definition file.
func (b *Backend) AddDefinition(def Definition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.definitions[def.Path] = def
}

// Create creates a workflow instance in the in-progress state.
func (b *Backend) Create(_ context.Context, req workflow.CreateRequest) (*models.CreatedWorkflow, error) {
	req = req.Normalize()
	if err := workflow.ValidateCreate(req); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	def, ok := b.definitions[req.WorkflowDefinitionFile]
	if !ok {
		return nil, failure("create workflow", http.StatusNotFound, "workflow definition file %s was not found", req.WorkflowDefinitionFile)
	}

	key := b.newKey()
	if b.keyInUse(key) {
		return nil, conflict("create workflow", "workflow key %s already exists", key)
	}

	d := def.Definition
	inst := &instance{
		data: models.WorkflowInstance{
			WorkflowKey:         key,
			WorkflowName:        req.WorkflowName,
			WorkflowDescription: d.WorkflowDescription,
			WorkflowID:          d.WorkflowID,
			WorkflowVersion:     d.WorkflowVersion,
			Owner:               req.Owner,
			System:              req.System,
			Vendor:              d.Vendor,
			Category:            d.Category,
			AccessType:          req.AccessType,
			StatusName:          models.StatusInProgress,
			DeleteCompletedJobs: *req.DeleteCompletedJobs,
			Steps:               cloneSteps(d.Steps),
			Variables:           mergeVariables(d.Variables, req.Variables),
		},
		stopAfter: -1,
		rcs:       def.ReturnCodes,
		created:   b.now(),
	}
	inst.leaves = leafNames(inst.data.Steps)
	setStates(inst.data.Steps, req.Owner, *req.AssignToOwner)
	b.workflows[key] = inst

	return &models.CreatedWorkflow{
		WorkflowKey:         key,
		WorkflowDescription: d.WorkflowDescription,
		WorkflowID:          d.WorkflowID,
		WorkflowVersion:     d.WorkflowVersion,
		Vendor:              d.Vendor,
	}, nil
}

// Start begins automation. Starting a workflow that is already running or
// finished is a conflict.
func (b *Backend) Start(_ context.Context, key string, opts workflow.StartOptions) error {
	if err := workflow.ValidateStart(key, opts); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	inst, ok := b.workflows[key]
	if !ok {
		return notFound("start workflow", key)
	}
	if inst.data.StatusName != models.StatusInProgress || inst.running() {
		return conflict("start workflow", "workflow %s cannot be started in state %s", key, inst.data.StatusName)
	}

	from := inst.next
	stopAfter := -1
	if opts.StepName != "" {
		idx := indexOf(inst.leaves, opts.StepName)
		if idx < 0 {
			return failure("start workflow", http.StatusBadRequest, "step %s was not found in workflow %s", opts.StepName, key)
		}
		from = idx
		if !opts.Subsequent() {
			stopAfter = idx
		}
	}
	if from >= len(inst.leaves) {
		return conflict("start workflow", "workflow %s has no steps left to run", key)
	}

	inst.next = from
	inst.stopAfter = stopAfter
	inst.data.StatusName = models.StatusAutomationInProgress
	inst.data.AutomationStatus = &models.AutomationStatus{
		StartUser:   inst.data.Owner,
		StartedTime: b.now().UnixMilli(),
	}
	b.point(inst)
	return nil
}

// Properties returns the current snapshot and then advances automation by
// one step.
func (b *Backend) Properties(_ context.Context, key string, opts workflow.PropertiesOptions) (*models.WorkflowInstance, error) {
	if err := workflow.ValidateKey(key); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	inst, ok := b.workflows[key]
	if !ok {
		return nil, notFound("get workflow properties", key)
	}

	snap := inst.data
	if inst.data.AutomationStatus != nil {
		as := *inst.data.AutomationStatus
		snap.AutomationStatus = &as
	}
	snap.Steps = nil
	snap.Variables = nil
	if opts.IncludeSteps {
		snap.Steps = cloneSteps(inst.data.Steps)
	}
	if opts.IncludeVariables {
		snap.Variables = append([]models.Variable{}, inst.data.Variables...)
	}

	b.advance(inst)
	return &snap, nil
}

// Cancel stops a workflow. Finished or already canceled workflows are a
// conflict.
func (b *Backend) Cancel(_ context.Context, key string) (*models.CanceledWorkflow, error) {
	if err := workflow.ValidateKey(key); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	inst, ok := b.workflows[key]
	if !ok {
		return nil, notFound("cancel workflow", key)
	}
	switch inst.data.StatusName {
	case models.StatusComplete, models.StatusCanceled:
		return nil, conflict("cancel workflow", "workflow %s is already %s", key, inst.data.StatusName)
	}
	inst.data.StatusName = models.StatusCanceled
	if inst.data.AutomationStatus != nil {
		inst.data.AutomationStatus.CurrentStepName = ""
		inst.data.AutomationStatus.CurrentStepNumber = ""
		inst.data.AutomationStatus.CurrentStepTitle = ""
		inst.data.AutomationStatus.StoppedTime = b.now().UnixMilli()
	}
	return &models.CanceledWorkflow{WorkflowName: inst.data.WorkflowName}, nil
}

// Delete removes an active workflow.
func (b *Backend) Delete(_ context.Context, key string) error {
	if err := workflow.ValidateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.workflows[key]; !ok {
		return notFound("delete workflow", key)
	}
	delete(b.workflows, key)
	return nil
}

// Archive moves an active workflow to the archived registry. Archiving an
// archived key is a conflict.
func (b *Backend) Archive(_ context.Context, key string) (*models.ArchivedWorkflow, error) {
	if err := workflow.ValidateKey(key); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.archived[key]; ok {
		return nil, conflict("archive workflow", "workflow %s is already archived", key)
	}
	inst, ok := b.workflows[key]
	if !ok {
		return nil, notFound("archive workflow", key)
	}
	if inst.running() {
		return nil, conflict("archive workflow", "workflow %s is running", key)
	}
	delete(b.workflows, key)
	b.archived[key] = &archivedEntry{
		summary: models.ArchivedWorkflowSummary{
			WorkflowKey:         key,
			WorkflowName:        inst.data.WorkflowName,
			ArchivedInstanceURI: workflow.ResourceRoot + "/" + workflow.DefaultVersion + "/" + workflow.ArchivedResource + "/" + key,
		},
		archived: b.now(),
	}
	return &models.ArchivedWorkflow{WorkflowKey: key}, nil
}

// DeleteArchived removes an archived workflow.
func (b *Backend) DeleteArchived(_ context.Context, key string) error {
	if err := workflow.ValidateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.archived[key]; !ok {
		return notFound("delete archived workflow", key)
	}
	delete(b.archived, key)
	return nil
}

// ListActive lists active workflows in creation order. The name filter
// accepts shell-style wildcards; the other filters match exactly.
func (b *Backend) ListActive(_ context.Context, filters workflow.FilterSet) ([]models.WorkflowSummary, error) {
	if _, err := workflow.BuildQuery("", filters.Filters()); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	insts := make([]*instance, 0, len(b.workflows))
	for _, inst := range b.workflows {
		insts = append(insts, inst)
	}
	sort.Slice(insts, func(i, j int) bool {
		if insts[i].created.Equal(insts[j].created) {
			return insts[i].data.WorkflowKey < insts[j].data.WorkflowKey
		}
		return insts[i].created.Before(insts[j].created)
	})

	out := []models.WorkflowSummary{}
	for _, inst := range insts {
		d := inst.data
		if !matchName(filters.Name, d.WorkflowName) ||
			!matchExact(filters.Category, d.Category) ||
			!matchExact(filters.System, d.System) ||
			!matchExact(filters.StatusName, d.StatusName) ||
			!matchExact(filters.Owner, d.Owner) ||
			!matchExact(filters.Vendor, d.Vendor) {
			continue
		}
		out = append(out, models.WorkflowSummary{
			WorkflowKey:         d.WorkflowKey,
			WorkflowName:        d.WorkflowName,
			WorkflowDescription: d.WorkflowDescription,
			WorkflowID:          d.WorkflowID,
			WorkflowVersion:     d.WorkflowVersion,
			InstanceURI:         workflow.ResourceRoot + "/" + workflow.DefaultVersion + "/" + workflow.WorkflowsResource + "/" + d.WorkflowKey,
			Owner:               d.Owner,
			Vendor:              d.Vendor,
			Category:            d.Category,
			System:              d.System,
			StatusName:          d.StatusName,
		})
	}
	return out, nil
}

// ListArchived lists archived workflows ordered by archive time. OrderBy
// "desc" reverses the order.
func (b *Backend) ListArchived(_ context.Context, filters workflow.FilterSet) ([]models.ArchivedWorkflowSummary, error) {
	if _, err := workflow.BuildQuery("", filters.ArchivedFilters()); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]*archivedEntry, 0, len(b.archived))
	for _, e := range b.archived {
		if matchName(filters.Name, e.summary.WorkflowName) {
			entries = append(entries, e)
		}
	}
	desc := filters.OrderBy == "desc"
	sort.Slice(entries, func(i, j int) bool {
		a, c := entries[i], entries[j]
		if a.archived.Equal(c.archived) {
			return (a.summary.WorkflowKey < c.summary.WorkflowKey) != desc
		}
		return a.archived.Before(c.archived) != desc
	})

	out := make([]models.ArchivedWorkflowSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.summary)
	}
	return out, nil
}

// Definition describes a registered definition file.
func (b *Backend) Definition(_ context.Context, defPath string, opts workflow.PropertiesOptions) (*models.WorkflowDefinition, error) {
	if err := workflow.ValidateDefinitionPath(defPath); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	def, ok := b.definitions[defPath]
	if !ok {
		return nil, failure("get workflow definition", http.StatusNotFound, "workflow definition file %s was not found", defPath)
	}
	out := def.Definition
	out.Steps = nil
	out.Variables = nil
	if opts.IncludeSteps {
		out.Steps = cloneSteps(def.Definition.Steps)
	}
	if opts.IncludeVariables {
		out.Variables = append([]models.VariableDefinition{}, def.Definition.Variables...)
	}
	return &out, nil
}

func (i *instance) running() bool {
	return i.data.AutomationStatus != nil && i.data.AutomationStatus.CurrentStepName != ""
}

// point sets the automation status to the next leaf step.
func (b *Backend) point(inst *instance) {
	name := inst.leaves[inst.next]
	step := workflow.FindStep(inst.data.Steps, name)
	as := inst.data.AutomationStatus
	as.CurrentStepName = name
	as.CurrentStepNumber = step.StepNumber
	as.CurrentStepTitle = step.Title
	step.State = models.StepInProgress
	if step.Template != "" || step.SubmitAs != "" {
		step.State = models.StepSubmitted
	}
	refreshGroups(inst.data.Steps)
}

// advance completes the running step and moves on, or stops automation.
func (b *Backend) advance(inst *instance) {
	if !inst.running() {
		return
	}
	as := inst.data.AutomationStatus
	step := workflow.FindStep(inst.data.Steps, as.CurrentStepName)

	rc := DefaultReturnCode
	if override, ok := inst.rcs[step.Name]; ok {
		rc = override
	}
	step.ReturnCode = &rc
	step.State = models.StepComplete
	switch {
	case step.SubmitAs != "":
		b.jobSeq++
		step.JobInfo = &models.JobInfo{JobStatus: &models.JobStatus{
			JobID:   fmt.Sprintf("JOB%05d", b.jobSeq),
			JobName: step.Name,
			Owner:   inst.data.Owner,
			Status:  "OUTPUT",
			RetCode: "CC " + rc,
		}}
	case step.IsRestStep:
		step.ActualStatusCode = step.ExpectedStatusCode
		if step.ActualStatusCode == "" {
			step.ActualStatusCode = "200"
		}
	}

	failed := rc != DefaultReturnCode
	if failed {
		step.State = models.StepFailed
	}
	idx := inst.next
	inst.next++

	stop := func(status, msg string) {
		as.CurrentStepName = ""
		as.CurrentStepNumber = ""
		as.CurrentStepTitle = ""
		as.StoppedTime = b.now().UnixMilli()
		as.MessageText = msg
		inst.data.StatusName = status
	}

	switch {
	case failed:
		stop(models.StatusFailed, fmt.Sprintf("Step %s ended with return code %s.", step.Name, rc))
	case inst.next >= len(inst.leaves):
		stop(models.StatusComplete, "Automation completed.")
	case idx == inst.stopAfter:
		stop(models.StatusInProgress, fmt.Sprintf("Step %s completed.", step.Name))
	default:
		b.point(inst)
	}
	inst.data.PercentComplete = inst.percent()
	refreshGroups(inst.data.Steps)
}

func (i *instance) percent() int {
	if len(i.leaves) == 0 {
		return 100
	}
	done := 0
	for _, name := range i.leaves {
		if s := workflow.FindStep(i.data.Steps, name); s != nil && s.State == models.StepComplete {
			done++
		}
	}
	return done * 100 / len(i.leaves)
}

func leafNames(steps []models.StepNode) []string {
	var names []string
	var visit func([]models.StepNode)
	visit = func(nodes []models.StepNode) {
		for i := range nodes {
			if len(nodes[i].Children) == 0 {
				names = append(names, nodes[i].Name)
				continue
			}
			visit(nodes[i].Children)
		}
	}
	visit(steps)
	return names
}

func setStates(steps []models.StepNode, owner string, assign bool) {
	for i := range steps {
		s := &steps[i]
		s.ReturnCode = nil
		s.JobInfo = nil
		s.ActualStatusCode = ""
		if assign {
			s.Owner = owner
			s.State = models.StepReady
		} else {
			s.State = models.StepUnassigned
		}
		setStates(s.Children, owner, assign)
	}
}

// refreshGroups derives each group's state from its children.
func refreshGroups(steps []models.StepNode) {
	for i := range steps {
		g := &steps[i]
		if len(g.Children) == 0 {
			continue
		}
		refreshGroups(g.Children)
		all, started, failed := true, false, false
		for _, c := range g.Children {
			switch c.State {
			case models.StepComplete:
				started = true
			case models.StepInProgress, models.StepSubmitted:
				started = true
				all = false
			case models.StepFailed:
				failed = true
				all = false
			default:
				all = false
			}
		}
		switch {
		case failed:
			g.State = models.StepFailed
		case all:
			g.State = models.StepComplete
		case started:
			g.State = models.StepInProgress
		}
	}
}

func cloneSteps(steps []models.StepNode) []models.StepNode {
	if steps == nil {
		return nil
	}
	out := make([]models.StepNode, len(steps))
	for i, s := range steps {
		c := s
		if s.ReturnCode != nil {
			rc := *s.ReturnCode
			c.ReturnCode = &rc
		}
		if s.JobInfo != nil {
			ji := *s.JobInfo
			if s.JobInfo.JobStatus != nil {
				js := *s.JobInfo.JobStatus
				ji.JobStatus = &js
			}
			ji.JobFiles = append([]models.JobFile(nil), s.JobInfo.JobFiles...)
			c.JobInfo = &ji
		}
		c.Children = cloneSteps(s.Children)
		out[i] = c
	}
	return out
}

func mergeVariables(defs []models.VariableDefinition, assigned []models.Variable) []models.Variable {
	out := make([]models.Variable, 0, len(defs)+len(assigned))
	index := make(map[string]int, len(defs))
	for _, d := range defs {
		index[d.Name] = len(out)
		out = append(out, models.Variable{Name: d.Name, Value: d.Default, Scope: d.Scope, Type: d.Type})
	}
	for _, v := range assigned {
		if i, ok := index[v.Name]; ok {
			out[i].Value = v.Value
			continue
		}
		index[v.Name] = len(out)
		out = append(out, models.Variable{Name: v.Name, Value: v.Value, Scope: "instance", Type: "string"})
	}
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func matchName(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func matchExact(want, got string) bool {
	return want == "" || want == got
}

func notFound(op, key string) error {
	return failure(op, http.StatusNotFound, "workflow %s was not found", key)
}

func conflict(op, format string, args ...any) error {
	return &workflow.RemoteConflictError{Op: op, Status: http.StatusConflict, Body: fmt.Sprintf(format, args...)}
}

func failure(op string, status int, format string, args ...any) error {
	return &workflow.RemoteFailure{Op: op, Status: status, Body: fmt.Sprintf(format, args...)}
}

// keyInUse reports whether key names an active or archived workflow.
// Callers hold b.mu.
func (b *Backend) keyInUse(key string) bool {
	if _, ok := b.workflows[key]; ok {
		return true
	}
	_, ok := b.archived[key]
	return ok
}
