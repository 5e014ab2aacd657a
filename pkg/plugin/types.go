package plugin

// Type represents the functional category of a plugin.
type Type string

const (
	// TypeObserver plugins consume the committed state-change feed.
	TypeObserver Type = "observer"
	// TypeExporter plugins publish derived views such as journal statistics
	// to external systems.
	TypeExporter Type = "exporter"
)

// Capability expresses optional host features a plugin may request access to.
type Capability string

const (
	CapabilityFilesystem Capability = "filesystem"
	CapabilityNetwork    Capability = "network"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	ID           string
	Name         string
	Description  string
	Author       string
	Version      string
	Category     Type
	Capabilities []Capability
}

// State represents the lifecycle position of a plugin instance.
type State string

const (
	StateRegistered  State = "registered"
	StateInitialised State = "initialised"
	StateStarted     State = "started"
	StateStopped     State = "stopped"
)
