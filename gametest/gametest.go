// Package gametest runs a story file to its first input request (or to
// completion) and reports whether it got there without panicking, so both
// the fixture-driven command-line harness in cmd/gametest and the
// compiler's own round-trip tests can drive a compiled image through the
// real interpreter the same way.
package gametest

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gruetools/grue/zmachine"
)

// Result captures the outcome of running a single story file.
type Result struct {
	Filename     string   `json:"filename"`
	Version      uint8    `json:"version"`
	Success      bool     `json:"success"`
	PanicMessage string   `json:"panic_message,omitempty"`
	StackTrace   string   `json:"stack_trace,omitempty"`
	FirstScreen  []string `json:"first_screen,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// DefaultTimeout bounds how long RunBytes waits for a story to reach its
// first input request before declaring it hung.
const DefaultTimeout = 5 * time.Second

// RunBytes loads storyBytes into a fresh ZMachine and runs it until it
// either hits its first SREAD/READ_CHAR request, quits or restarts on its
// own, or times out - recovering any panic along the way so a broken story
// reports as a failed Result rather than taking the caller down with it.
// label is used only to fill in Result.Filename.
func RunBytes(label string, storyBytes []uint8, timeout time.Duration) Result {
	return run(label, storyBytes, timeout, func(turn int) (zmachine.InputResponse, bool) {
		return zmachine.InputResponse{Text: "quit", TerminatingKey: '\n'}, true
	})
}

// RunWithInputs is RunBytes for a multi-turn session: it feeds inputs back
// one per WaitForInput/WaitForCharacter request, in order, and only falls
// back to "quit" (ending collection) once inputs is exhausted - how a
// compiled grammar dispatch loop's handling of a specific command gets
// exercised end to end instead of just its startup screen.
func RunWithInputs(label string, storyBytes []uint8, inputs []string, timeout time.Duration) Result {
	return run(label, storyBytes, timeout, func(turn int) (zmachine.InputResponse, bool) {
		if turn < len(inputs) {
			return zmachine.InputResponse{Text: inputs[turn], TerminatingKey: '\n'}, false
		}
		return zmachine.InputResponse{Text: "quit", TerminatingKey: '\n'}, true
	})
}

// inputPolicy supplies the response to the turn'th WaitForInput/
// WaitForCharacter request the running story makes, and whether that
// response should be the last one run collects output for.
type inputPolicy func(turn int) (response zmachine.InputResponse, stop bool)

func run(label string, storyBytes []uint8, timeout time.Duration, policy inputPolicy) (result Result) {
	result.Filename = label

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.PanicMessage = fmt.Sprintf("%v", r)
			result.StackTrace = string(debug.Stack())
		}
	}()

	if len(storyBytes) < 64 {
		result.Success = false
		result.ErrorMessage = "file too small to be a valid Z-machine file"
		return
	}
	result.Version = storyBytes[0]

	outputChannel := make(chan any, 100)
	inputChannel := make(chan zmachine.InputResponse, 10)
	saveRestoreChannel := make(chan zmachine.SaveRestoreResponse, 10)

	z := zmachine.LoadRom(storyBytes, inputChannel, saveRestoreChannel, outputChannel)

	var screenOutput []string
	done := make(chan bool, 1)
	timeoutCh := time.After(timeout)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				result.Success = false
				result.PanicMessage = fmt.Sprintf("panic in Run: %v", r)
				result.StackTrace = string(debug.Stack())
			}
			done <- true
		}()
		z.Run()
	}()

	turn := 0
	collecting := true
	for collecting {
		select {
		case msg := <-outputChannel:
			switch v := msg.(type) {
			case string:
				screenOutput = append(screenOutput, strings.Split(v, "\n")...)
			case zmachine.StateChangeRequest:
				if v == zmachine.WaitForInput || v == zmachine.WaitForCharacter {
					response, stop := policy(turn)
					turn++
					if stop {
						collecting = false
					}
					inputChannel <- response
				}
			case zmachine.Quit:
				collecting = false
			case zmachine.Restart:
				collecting = false
			case zmachine.RuntimeError:
				result.Success = false
				result.ErrorMessage = string(v)
				return
			}
		case <-timeoutCh:
			result.Success = false
			result.ErrorMessage = "timeout waiting for the first screen"
			return
		case <-done:
			collecting = false
		}
	}

	result.Success = result.PanicMessage == ""
	result.FirstScreen = screenOutput
	return
}
