package bot

// MockClassifier answers with ClassifyFunc, or the first label when unset.
type MockClassifier struct {
	ClassifyFunc func(text string, labels []string) (string, float64, error)
}

func (m *MockClassifier) Classify(text string, labels []string) (string, float64, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(text, labels)
	}
	if len(labels) > 0 {
		return labels[0], 0.9, nil
	}
	return "", 0, nil
}
