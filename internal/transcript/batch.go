package transcript

// ReadAll reconstructs the complete event sequence of the transcript at path
// using FIFO tool matching. A missing or empty file yields no events.
func ReadAll(path string) ([]Event, error) {
	return ReadAllWith(path, NewFIFOMatcher())
}

// ReadAllWith is ReadAll with an explicit tool matcher.
func ReadAllWith(path string, tools ToolMatcher) ([]Event, error) {
	chunk, err := ReadSince(path, 0)
	if err != nil {
		return nil, err
	}

	events := []Event{}
	if len(chunk) == 0 {
		return events, nil
	}

	state := NewState(tools)
	for _, entry := range ParseLines(chunk, false).Entries {
		events = append(events, state.Process(entry)...)
	}
	if end, ok := state.Finish(); ok {
		events = append(events, end)
	}
	return events, nil
}
