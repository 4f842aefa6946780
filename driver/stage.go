package driver

import "encoding/json"

// Stage names a point in the compile pipeline, doubling as the Driver's
// top-level state: every stage after Idle and before Done implies the
// Driver is busy compiling.
type Stage int

const (
	Idle Stage = iota
	LoadToolchain
	CacheCheck
	StageSources
	PrepareBuild
	Compile
	Link
	Publish
	Done
	Failed
	Cancelled
)

func (s Stage) String() string {
	names := [...]string{
		"Idle",
		"LoadToolchain",
		"CacheCheck",
		"StageSources",
		"PrepareBuild",
		"Compile",
		"Link",
		"Publish",
		"Done",
		"Failed",
		"Cancelled",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "Unknown"
	}
	return names[s]
}

func (s *Stage) fromString(name string) {
	names := [...]string{
		"Idle", "LoadToolchain", "CacheCheck", "StageSources", "PrepareBuild",
		"Compile", "Link", "Publish", "Done", "Failed", "Cancelled",
	}
	for i, n := range names {
		if n == name {
			*s = Stage(i)
			return
		}
	}
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var tmp string
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	s.fromString(tmp)
	return nil
}

// Busy reports whether the Driver is between Idle and a terminal stage,
// i.e. whether a concurrent Compile call must be rejected.
func (s Stage) Busy() bool {
	switch s {
	case Idle, Done, Failed, Cancelled:
		return false
	default:
		return true
	}
}
