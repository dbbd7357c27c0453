package engine

import "testing"

func TestEventInvoke(t *testing.T) {
	var e Event
	calls := 0
	e.AddListener(func() { calls++ })
	e.AddListener(nil)
	e.AddListener(func() { calls += 10 })

	if e.GetListenerCount() != 2 {
		t.Errorf("nil listeners should be ignored, got %d", e.GetListenerCount())
	}

	e.Invoke()
	if calls != 11 {
		t.Errorf("Expected both listeners to run, calls=%d", calls)
	}

	e.RemoveAllListeners()
	e.Invoke()
	if calls != 11 {
		t.Error("Listeners ran after RemoveAllListeners")
	}
}

func TestEventWithArgReentrantClear(t *testing.T) {
	var e EventWithArg[string]
	var got []string
	e.AddListener(func(id string) {
		got = append(got, id)
		e.RemoveAllListeners()
	})

	e.Invoke("prefab-1")
	e.Invoke("prefab-2")

	if len(got) != 1 || got[0] != "prefab-1" {
		t.Errorf("Unexpected invocations: %v", got)
	}
}
