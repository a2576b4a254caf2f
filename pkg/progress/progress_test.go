package progress

import "testing"

func TestChannelReporter_DropsWhenFull(t *testing.T) {
	ch := make(chan Update, 2)
	r := NewChannelReporter(ch)

	for i := 0; i < 5; i++ {
		r.Report(Update{Stage: StageDetect})
	}

	if len(ch) != 2 {
		t.Errorf("buffered = %d, want 2", len(ch))
	}
	if r.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", r.Dropped())
	}
}

func TestMultiReporter_FansOutAndSkipsNil(t *testing.T) {
	var a, b []Stage
	m := NewMultiReporter(
		FuncReporter(func(u Update) { a = append(a, u.Stage) }),
		nil,
		FuncReporter(func(u Update) { b = append(b, u.Stage) }),
	)

	m.Report(Update{Stage: StageStretch})
	m.Report(Update{Stage: StageDone})

	if len(a) != 2 || len(b) != 2 || a[1] != StageDone || b[0] != StageStretch {
		t.Errorf("a = %v, b = %v", a, b)
	}
}
