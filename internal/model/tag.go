package model

// EventTypeMode selects how the conversion event type is chosen.
type EventTypeMode string

const (
	// EventTypeInherit maps the incoming event_name through the standard table.
	EventTypeInherit EventTypeMode = "inherit"
	// EventTypeCustom sends a Custom event named by EventNameCustom.
	EventTypeCustom EventTypeMode = "custom"
	// EventTypeStandard sends EventName verbatim as the tracking type.
	EventTypeStandard EventTypeMode = "standard"
)

// LogMode controls request/response logging for a tag.
type LogMode string

const (
	LogModeUnset  LogMode = ""
	LogModeNo     LogMode = "no"
	LogModeDebug  LogMode = "debug"
	LogModeAlways LogMode = "always"
)

// Param is one caller-supplied name/value override.
type Param struct {
	Name  string `yaml:"name" json:"name"`
	Value any    `yaml:"value" json:"value"`
}

// TagConfig is the per-destination mapping configuration. It is read-only for the
// duration of one forwarded event.
type TagConfig struct {
	AccountID             string        `yaml:"account_id"`
	AccessToken           string        `yaml:"access_token"`
	EventType             EventTypeMode `yaml:"event_type"`
	EventName             string        `yaml:"event_name"`
	EventNameCustom       string        `yaml:"event_name_custom"`
	ClickID               string        `yaml:"click_id"`
	EventAt               string        `yaml:"event_at"`
	TestMode              bool          `yaml:"test_mode"`
	UseOptimisticScenario bool          `yaml:"use_optimistic_scenario"`
	LogType               LogMode       `yaml:"log_type"`
	UserDataList          []Param       `yaml:"user_data_list"`
	ServerEventDataList   []Param       `yaml:"server_event_data_list"`
}
