package models

// ActionType enumerates the closed set of step actions the engine knows how
// to dispatch. Unknown kinds are rejected when a workflow is loaded.
type ActionType string

const (
	ActionGoto               ActionType = "goto"
	ActionFill               ActionType = "fill"
	ActionPressKey           ActionType = "press_key"
	ActionClick              ActionType = "click"
	ActionEnsureChecked      ActionType = "ensure_checked"
	ActionBatchEnsureChecked ActionType = "batch_ensure_checked"
	ActionDeselectAllColumns ActionType = "deselect_all_columns"
	ActionSelectColumns      ActionType = "select_columns"
	ActionCheckURL           ActionType = "check_url"
	ActionWaitForURL         ActionType = "wait_for_url"
	ActionWaitForSelector    ActionType = "wait_for_selector"
	ActionWaitForDownload    ActionType = "wait_for_download"
	ActionClickAndDownload   ActionType = "click_and_download"
	ActionCaptureState       ActionType = "capture_state"
	ActionScrape             ActionType = "scrape"
	ActionManualIntervention ActionType = "manual_intervention"
	ActionReadInput          ActionType = "read_input"
	ActionReadText           ActionType = "read_text"
	ActionExecuteScript      ActionType = "execute_script"
	ActionValidateFilters    ActionType = "validate_filters"
	ActionLoopElements       ActionType = "loop_elements"
	ActionLoopVATReturns     ActionType = "loop_vat_returns"
)

// KnownActions maps every dispatchable action type. The registry is built
// from this set so the enumeration stays closed in one place.
var KnownActions = map[ActionType]bool{
	ActionGoto:               true,
	ActionFill:               true,
	ActionPressKey:           true,
	ActionClick:              true,
	ActionEnsureChecked:      true,
	ActionBatchEnsureChecked: true,
	ActionDeselectAllColumns: true,
	ActionSelectColumns:      true,
	ActionCheckURL:           true,
	ActionWaitForURL:         true,
	ActionWaitForSelector:    true,
	ActionWaitForDownload:    true,
	ActionClickAndDownload:   true,
	ActionCaptureState:       true,
	ActionScrape:             true,
	ActionManualIntervention: true,
	ActionReadInput:          true,
	ActionReadText:           true,
	ActionExecuteScript:      true,
	ActionValidateFilters:    true,
	ActionLoopElements:       true,
	ActionLoopVATReturns:     true,
}

// URLCondition is one branch of a check_url step. Contains matches a
// lowercase substring of the current URL, Matches is a regular expression.
type URLCondition struct {
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Matches  string `json:"matches,omitempty"  yaml:"matches,omitempty"`
	GotoStep string `json:"goto_step,omitempty" yaml:"goto_step,omitempty"`
}

// SelectorSet is an ordered list of selectors tried until one matches.
type SelectorSet struct {
	Selectors []string `json:"selectors,omitempty" yaml:"selectors,omitempty"`
}

// FieldSpec describes how to extract one field from a scraped item.
type FieldSpec struct {
	Selectors      []string `json:"selectors,omitempty"       yaml:"selectors,omitempty"`
	Attribute      string   `json:"attribute,omitempty"       yaml:"attribute,omitempty"`
	ExtractPattern string   `json:"extract_pattern,omitempty" yaml:"extract_pattern,omitempty"`
}

// CheckboxSpec is one entry of a batch_ensure_checked step.
type CheckboxSpec struct {
	Selectors []string `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	Checked   *bool    `json:"checked,omitempty"   yaml:"checked,omitempty"`
}

// ColumnSpec names one required report column for select_columns.
type ColumnSpec struct {
	Name     string `json:"name,omitempty"     yaml:"name,omitempty"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty" validate:"required"`
}

// ValidationChecks configures a validate_filters step.
type ValidationChecks struct {
	ExpectedColumns []string `json:"expected_columns,omitempty" yaml:"expected_columns,omitempty"`
	MinRows         int      `json:"min_rows,omitempty"         yaml:"min_rows,omitempty"`
}

// Step is a single declarative action. The struct is a tagged variant keyed
// by Action: common fields apply to every kind, the rest are read only by
// the handler the action dispatches to. Steps are owned by their Workflow
// and never mutated after load.
type Step struct {
	ID          string     `json:"id"                    yaml:"id"                    validate:"required"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Action      ActionType `json:"action"                yaml:"action"                validate:"required"`
	Optional    bool       `json:"optional,omitempty"    yaml:"optional,omitempty"`
	OnError     string     `json:"on_error,omitempty"    yaml:"on_error,omitempty"`
	OnTimeout   string     `json:"on_timeout,omitempty"  yaml:"on_timeout,omitempty"`
	WaitAfter   int        `json:"wait_after,omitempty"  yaml:"wait_after,omitempty"` // milliseconds
	Timeout     int        `json:"timeout,omitempty"     yaml:"timeout,omitempty"`    // milliseconds

	// goto
	URL       string `json:"url,omitempty"        yaml:"url,omitempty"`
	WaitUntil string `json:"wait_until,omitempty" yaml:"wait_until,omitempty"`

	// fill / click / waits / reads / downloads
	Selectors   []string `json:"selectors,omitempty"    yaml:"selectors,omitempty"`
	Value       string   `json:"value,omitempty"        yaml:"value,omitempty"`
	WaitVisible bool     `json:"wait_visible,omitempty" yaml:"wait_visible,omitempty"`
	Key         string   `json:"key,omitempty"          yaml:"key,omitempty"`

	// click
	ExpectNewTab bool `json:"expect_new_tab,omitempty" yaml:"expect_new_tab,omitempty"`

	// check_url
	Conditions  []URLCondition `json:"conditions,omitempty"   yaml:"conditions,omitempty"`
	DefaultStep string         `json:"default_step,omitempty" yaml:"default_step,omitempty"`

	// wait_for_url / manual_intervention
	Patterns   []string `json:"patterns,omitempty"     yaml:"patterns,omitempty"`
	WaitForURL string   `json:"wait_for_url,omitempty" yaml:"wait_for_url,omitempty"`
	Message    string   `json:"message,omitempty"      yaml:"message,omitempty"`

	// capture_state
	Save map[string]string `json:"save,omitempty" yaml:"save,omitempty"`

	// scrape
	Target    string               `json:"target,omitempty" yaml:"target,omitempty"`
	Container SelectorSet          `json:"container,omitempty" yaml:"container,omitempty"`
	Items     SelectorSet          `json:"items,omitempty"     yaml:"items,omitempty"`
	Fields    map[string]FieldSpec `json:"fields,omitempty"    yaml:"fields,omitempty"`

	// read_input / read_text / execute_script
	SaveAs         string `json:"save_as,omitempty"         yaml:"save_as,omitempty"`
	ExtractPattern string `json:"extract_pattern,omitempty" yaml:"extract_pattern,omitempty"`
	Script         string `json:"script,omitempty"          yaml:"script,omitempty"`

	// checkbox and column steps
	Checked    *bool          `json:"checked,omitempty"    yaml:"checked,omitempty"`
	Checkboxes []CheckboxSpec `json:"checkboxes,omitempty" yaml:"checkboxes,omitempty"`
	Except     []string       `json:"except,omitempty"     yaml:"except,omitempty"`
	Columns    []ColumnSpec   `json:"columns,omitempty"    yaml:"columns,omitempty"`

	// validate_filters
	Checks      ValidationChecks `json:"checks,omitempty"        yaml:"checks,omitempty"`
	FailOnError bool             `json:"fail_on_error,omitempty" yaml:"fail_on_error,omitempty"`

	// downloads: SaveTo is the destination root for download steps and the
	// optional JSON output path for scrape steps.
	SaveTo string `json:"save_to,omitempty" yaml:"save_to,omitempty"`

	// loop_elements / loop_vat_returns
	ContainerSelector string `json:"container_selector,omitempty"  yaml:"container_selector,omitempty"`
	ItemSelector      string `json:"item_selector,omitempty"       yaml:"item_selector,omitempty"`
	DateFieldSelector string `json:"date_field_selector,omitempty" yaml:"date_field_selector,omitempty"`
	DateExtractMode   string `json:"date_extract_mode,omitempty"   yaml:"date_extract_mode,omitempty"`
	ActionSelector    string `json:"action_selector,omitempty"     yaml:"action_selector,omitempty"`
	FilterDateFrom    string `json:"filter_date_from,omitempty"    yaml:"filter_date_from,omitempty"`
	ReverseOrder      *bool  `json:"reverse_order,omitempty"       yaml:"reverse_order,omitempty"`
	SubSteps          []Step `json:"sub_steps,omitempty"           yaml:"sub_steps,omitempty"`
	RecoverySteps     []Step `json:"recovery_steps,omitempty"      yaml:"recovery_steps,omitempty"`
	DiscoveryScript   string `json:"discovery_script,omitempty"    yaml:"discovery_script,omitempty"`
	ListReadySelector string `json:"list_ready_selector,omitempty" yaml:"list_ready_selector,omitempty"`
}

// Reverse reports whether a loop step processes items in reverse discovery
// order. Loops default to reverse (oldest first for newest-first pages).
func (s *Step) Reverse() bool {
	if s.ReverseOrder == nil {
		return true
	}

	return *s.ReverseOrder
}

// WantChecked reports the desired checkbox state, defaulting to checked.
func (s *Step) WantChecked() bool {
	if s.Checked == nil {
		return true
	}

	return *s.Checked
}

// WantChecked reports the desired state of one batch checkbox entry.
func (c *CheckboxSpec) WantChecked() bool {
	if c.Checked == nil {
		return true
	}

	return *c.Checked
}
