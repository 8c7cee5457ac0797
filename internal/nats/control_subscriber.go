/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package nats

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-synth-go/internal/dsp"
	"github.com/loqalabs/loqa-synth-go/internal/velocity"
	"github.com/loqalabs/loqa-synth-go/internal/voice"
)

const (
	subjectPrefix = "synth"
	broadcastID   = "broadcast"

	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Control commands; each is the last token of a subject.
const (
	CommandVoice     = "voice"
	CommandCurve     = "curve"
	CommandNote      = "note"
	CommandGain      = "gain"
	CommandPrefilter = "prefilter"
)

// CurveMessage selects the velocity curve by name.
type CurveMessage struct {
	Curve string `json:"curve"`
}

// NoteMessage starts a note, or releases it when Velocity is 0.
type NoteMessage struct {
	Note     int `json:"note"`
	Velocity int `json:"velocity"`
}

// GainMessage sets the output gain (0..1).
type GainMessage struct {
	Gain float32 `json:"gain"`
}

// PrefilterMessage switches the high-pass prefilter.
type PrefilterMessage struct {
	Enabled bool `json:"enabled"`
}

// ControlReply is published to the reply subject of a request.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Voice string `json:"voice,omitempty"` // name of the active voice
}

// Synth is the control surface driven over NATS.
type Synth interface {
	LoadVoice(raw []byte) error
	NoteOn(note, velocity uint8)
	NoteOff(note uint8)
	SetVelocityCurve(c velocity.Curve)
	SetGain(gain float32)
	SetFilterConfig(cfg dsp.FilterConfig)
	Voice() voice.Image
}

// SynthNATSConnection interface for dependency injection
type SynthNATSConnection interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
	Close()
}

// SynthNATSConnectionAdapter adapts *nats.Conn to SynthNATSConnection interface
type SynthNATSConnectionAdapter struct {
	conn *nats.Conn
}

func NewSynthNATSConnectionAdapter(conn *nats.Conn) *SynthNATSConnectionAdapter {
	return &SynthNATSConnectionAdapter{conn: conn}
}

func (r *SynthNATSConnectionAdapter) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return r.conn.Subscribe(subject, cb)
}

func (r *SynthNATSConnectionAdapter) Publish(subject string, data []byte) error {
	return r.conn.Publish(subject, data)
}

func (r *SynthNATSConnectionAdapter) Close() {
	r.conn.Close()
}

// ControlSubscriber applies remote control commands to a Synth. Handlers run on
// NATS goroutines, never on the render thread.
type ControlSubscriber struct {
	natsConn SynthNATSConnection
	synthID  string
	synth    Synth
	handlers map[string]func([]byte) error
}

// NewControlSubscriber connects to natsURL, retrying as the connection comes up.
func NewControlSubscriber(natsURL, synthID string, synth Synth) (*ControlSubscriber, error) {
	// Connect to NATS with retry
	var nc *nats.Conn
	var err error

	for i := 0; i < connectAttempts; i++ {
		nc, err = nats.Connect(natsURL, nats.Name("loqa-synth "+synthID))
		if err == nil {
			break
		}
		log.Printf("⚠️  Failed to connect to NATS (attempt %d/%d): %v", i+1, connectAttempts, err)
		if i < connectAttempts-1 {
			time.Sleep(connectBackoff)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", connectAttempts, err)
	}

	log.Printf("✅ Connected to NATS at %s", natsURL)
	return NewControlSubscriberWithConnection(NewSynthNATSConnectionAdapter(nc), synthID, synth), nil
}

// NewControlSubscriberWithConnection creates a subscriber on an existing connection (for testing)
func NewControlSubscriberWithConnection(natsConn SynthNATSConnection, synthID string, synth Synth) *ControlSubscriber {
	cs := &ControlSubscriber{
		natsConn: natsConn,
		synthID:  synthID,
		synth:    synth,
	}
	cs.handlers = map[string]func([]byte) error{
		CommandVoice:     cs.handleVoice,
		CommandCurve:     cs.handleCurve,
		CommandNote:      cs.handleNote,
		CommandGain:      cs.handleGain,
		CommandPrefilter: cs.handlePrefilter,
	}
	return cs
}

// Subject returns the subject a command is received on for id.
func Subject(id, command string) string {
	return subjectPrefix + "." + id + "." + command
}

// Start subscribes to every command on the synth's own and the broadcast subjects.
func (cs *ControlSubscriber) Start() error {
	var subjects []string
	for _, id := range []string{cs.synthID, broadcastID} {
		for _, cmd := range []string{CommandVoice, CommandCurve, CommandNote, CommandGain, CommandPrefilter} {
			subject := Subject(id, cmd)
			if _, err := cs.natsConn.Subscribe(subject, cs.handleMessage); err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
			}
			subjects = append(subjects, subject)
		}
	}

	log.Printf("🎧 Subscribed to control topics: %s", strings.Join(subjects, ", "))
	return nil
}

func (cs *ControlSubscriber) handleMessage(msg *nats.Msg) {
	cmd := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]

	reply := ControlReply{OK: true}
	handler, ok := cs.handlers[cmd]
	if !ok {
		reply = ControlReply{Error: fmt.Sprintf("unknown command %q", cmd)}
	} else if err := handler(msg.Data); err != nil {
		log.Printf("❌ Control command %s failed: %v", cmd, err)
		reply = ControlReply{Error: err.Error()}
	}

	if msg.Reply == "" {
		return
	}
	img := cs.synth.Voice()
	reply.Voice = img.Name()

	data, err := json.Marshal(reply)
	if err != nil {
		log.Printf("❌ Failed to marshal control reply: %v", err)
		return
	}
	if err := cs.natsConn.Publish(msg.Reply, data); err != nil {
		log.Printf("⚠️  Failed to publish control reply: %v", err)
	}
}

func (cs *ControlSubscriber) handleVoice(data []byte) error {
	return cs.synth.LoadVoice(data)
}

func (cs *ControlSubscriber) handleCurve(data []byte) error {
	var m CurveMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid curve message: %w", err)
	}
	c, ok := velocity.ParseCurve(m.Curve)
	if !ok {
		return fmt.Errorf("unknown velocity curve %q", m.Curve)
	}
	cs.synth.SetVelocityCurve(c)
	log.Printf("🎹 Velocity curve set to %s", c)
	return nil
}

func (cs *ControlSubscriber) handleNote(data []byte) error {
	var m NoteMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid note message: %w", err)
	}
	if m.Note < 0 || m.Note > 127 {
		return fmt.Errorf("note %d out of range 0..127", m.Note)
	}
	if m.Velocity < 0 || m.Velocity > 127 {
		return fmt.Errorf("velocity %d out of range 0..127", m.Velocity)
	}
	if m.Velocity == 0 {
		cs.synth.NoteOff(uint8(m.Note))
	} else {
		cs.synth.NoteOn(uint8(m.Note), uint8(m.Velocity))
	}
	return nil
}

func (cs *ControlSubscriber) handleGain(data []byte) error {
	var m GainMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid gain message: %w", err)
	}
	if m.Gain < 0 || m.Gain > 1 {
		return fmt.Errorf("gain %g out of range 0..1", m.Gain)
	}
	cs.synth.SetGain(m.Gain)
	return nil
}

func (cs *ControlSubscriber) handlePrefilter(data []byte) error {
	var m PrefilterMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid prefilter message: %w", err)
	}
	cs.synth.SetFilterConfig(dsp.FilterConfig{HighPassPrefilter: m.Enabled})
	return nil
}

// Close closes the NATS connection
func (cs *ControlSubscriber) Close() {
	if cs.natsConn != nil {
		cs.natsConn.Close()
		log.Println("🔌 NATS connection closed")
	}
}
