package testutil

import (
	_ "embed"
	"encoding/json"
)

//go:embed fakegame.js
var fakeGameSource string

// FakeGame configures the scripted stand-in game run by gojapage in tests.
// Zero values select the script's defaults: the game starts on TitleScene,
// Enter reaches WorldMapScene, Enter again enters PlayScene, a jump press
// flips the jump-cut flag once on its first airborne frame, a dash held for
// 10 frames reaches the run state, reversing from a run skids for 10 frames
// and a jump records a 50 ms stomp hit-stop 8 airborne frames later.
type FakeGame struct {
	DebugGlobal string `json:"debugGlobal,omitempty"`
	SaveKey     string `json:"saveKey,omitempty"`
	StartScene  string `json:"startScene,omitempty"`

	TitleDelayMs          int `json:"titleDelayMs,omitempty"`
	HubDelayMs            int `json:"hubDelayMs,omitempty"`
	PlayDelayMs           int `json:"playDelayMs,omitempty"`
	SelectionReadyDelayMs int `json:"selectionReadyDelayMs,omitempty"`

	// SelectionMode is one of request (default), field, lagged, reject or none.
	SelectionMode string `json:"selectionMode,omitempty"`
	TitleStuck    bool   `json:"titleStuck,omitempty"`
	PlayStuck     bool   `json:"playStuck,omitempty"`
	ReturnStuck   bool   `json:"returnStuck,omitempty"`
	PlayReadyFlag *bool  `json:"playReadyFlag,omitempty"`
	DebugState    *bool  `json:"debugState,omitempty"`
	AsyncAdvance  bool   `json:"asyncAdvance,omitempty"`

	CutDelayFrames   int   `json:"cutDelayFrames,omitempty"`
	CutFlips         int   `json:"cutFlips,omitempty"`
	RunFrames        int   `json:"runFrames,omitempty"`
	SkidFrames       int   `json:"skidFrames,omitempty"`
	AirFrames        int   `json:"airFrames,omitempty"`
	Stomp            *bool `json:"stomp,omitempty"`
	StompAfterFrames int   `json:"stompAfterFrames,omitempty"`
	StompHitstopMs   int   `json:"stompHitstopMs,omitempty"`

	// ConsoleErrors are logged with console.error on every load.
	ConsoleErrors []string `json:"consoleErrors,omitempty"`
	// PlayError is thrown from a timer once PlayScene becomes ready.
	PlayError string `json:"playError,omitempty"`
}

// Script returns the page script for g.
func (g FakeGame) Script() string {
	cfg, err := json.Marshal(g)
	if err != nil {
		panic(err)
	}
	return "window.__FAKE_GAME__ = " + string(cfg) + ";\n" + fakeGameSource
}

// Bool returns a pointer to v, for the optional FakeGame switches.
func Bool(v bool) *bool { return &v }
