package wsgateway

import "testing"

func TestThrottle_AllowsWithinWindow(t *testing.T) {
	throttle := NewThrottle()

	for i := 0; i < framesPerWindow; i++ {
		if !throttle.Allow(1) {
			t.Fatalf("expected admission %d to be allowed", i)
		}
	}

	if throttle.Allow(1) {
		t.Error("expected admission beyond the window limit to be denied")
	}
}

func TestThrottle_ForgetResetsState(t *testing.T) {
	throttle := NewThrottle()

	for i := 0; i < framesPerWindow; i++ {
		throttle.Allow(1)
	}
	throttle.Forget(1)

	if !throttle.Allow(1) {
		t.Error("expected allow after Forget to reset the window")
	}
}

func TestThrottle_IndependentPerConnection(t *testing.T) {
	throttle := NewThrottle()

	for i := 0; i < framesPerWindow; i++ {
		throttle.Allow(1)
	}

	if !throttle.Allow(2) {
		t.Error("expected connection 2 to have its own independent window")
	}
}
