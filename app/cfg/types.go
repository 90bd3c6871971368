package cfg

import "time"

type Command string

const (
	CommandRun    Command = "run"
	CommandServe  Command = "serve"
	CommandStatus Command = "status"
)

type Cfg struct {
	Command Command

	// Input and output locations
	DescriptorsDir string
	OutputDir      string
	StatusFile     string
	DBPath         string

	// Fetching
	UserAgent    string
	Timeout      time.Duration
	RequestDelay time.Duration

	// Feed limits and defaults
	MaxItems int // ceiling over descriptor max_items
	Location *time.Location

	// Serve mode
	Port         string
	APIAccessKey string

	Timezone string
	Debug    bool
	Version  string
}
