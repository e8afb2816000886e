package feature

// Labels tracks a slice of features and their index locations that match up
// with the ordering of the columns of a frame.
type Labels struct {
	idx    map[string]int
	labels []Feature
}

func NewLabels(labels []Feature) *Labels {
	idx := make(map[string]int)
	for i := 0; i < len(labels); i++ {
		idx[labels[i].String()] = i
	}
	fl := &Labels{
		labels: labels,
		idx:    idx,
	}
	return fl
}

func (f *Labels) Len() int {
	if f == nil {
		return 0
	}
	return len(f.labels)
}

func (f *Labels) Labels() []Feature {
	labels := make([]Feature, len(f.labels))
	copy(labels, f.labels)
	return labels
}

// Names returns the column names in order
func (f *Labels) Names() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.labels))
	for _, l := range f.labels {
		names = append(names, l.String())
	}
	return names
}

func (f *Labels) Index(label Feature) (int, bool) {
	return f.IndexOf(label.String())
}

// IndexOf looks up a column by name
func (f *Labels) IndexOf(name string) (int, bool) {
	if idx, exists := f.idx[name]; exists {
		return idx, exists
	}
	return -1, false
}
