package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := WrapEmuError(cause, "loading")

	if err.Error() != "loading: boom" {
		t.Errorf("message = %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}

func TestIsEmuError(t *testing.T) {
	if !IsEmuError(EmuErrorf("bad ROM %d", 1)) {
		t.Error("EmuErrorf result not recognized")
	}
	if IsEmuError(fmt.Errorf("plain")) {
		t.Error("plain error recognized as emulator error")
	}
}
