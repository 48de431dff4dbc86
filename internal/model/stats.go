package model

// Stats counts the sites each pass family actually transformed during one
// run, plus any non-fatal warnings raised along the way.
type Stats struct {
	Renamed    int
	Strings    int
	Ints       int
	Floats     int
	Bytes      int
	NoneValues int
	Bools      int
	FlowBlocks int
	Attrs      int
	SetAttrs   int
	Calls      int
	Builtins   int
	Imports    int
	Redirects  int
	Junk       int

	Warnings []string
}

// Warn appends a non-fatal warning.
func (s *Stats) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Counts returns the per-family counters as ordered label/value pairs for
// rendering and for the metadata stats section.
func (s *Stats) Counts() []StatCount {
	return []StatCount{
		{"renamed", s.Renamed},
		{"strings", s.Strings},
		{"ints", s.Ints},
		{"floats", s.Floats},
		{"bytes", s.Bytes},
		{"none", s.NoneValues},
		{"bools", s.Bools},
		{"flow_blocks", s.FlowBlocks},
		{"attrs", s.Attrs},
		{"setattrs", s.SetAttrs},
		{"calls", s.Calls},
		{"builtins", s.Builtins},
		{"imports", s.Imports},
		{"redirects", s.Redirects},
		{"junk_functions", s.Junk},
	}
}

// StatCount is one labelled counter.
type StatCount struct {
	Label string
	Count int
}
