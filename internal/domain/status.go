package domain

// AppStatus is a read-only snapshot of what the app is doing, polled by
// the UI for its status bar.
type AppStatus struct {
	Page         Page
	StoryTitle   string
	Narrating    bool
	Segment      int // index of the segment being read
	Segments     int
	Generating   bool
	Breathing    BreathingSession
	Capabilities Capabilities
}
