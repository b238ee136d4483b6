// Package snapshot saves and restores a simulation state as a zstd file.
//
// A snapshot is a zstd stream holding two parts: one line of JSON header,
// then the canonical JSON state. The header carries the state digest, and
// Read refuses a snapshot whose state does not match it.
package snapshot

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/tickflow/internal/sim"
)

// Version is the snapshot layout version written by Write.
const Version = 1

// Header is the first line of a snapshot.
type Header struct {
	Version int    `json:"version"`
	Program string `json:"program"`
	RunID   string `json:"run_id,omitempty"`
	Tick    int64  `json:"tick"`
	Digest  string `json:"digest"`
}

// Snapshot is a state and where it came from.
type Snapshot struct {
	Header Header
	State  *sim.State
}

// ErrDigestMismatch is returned by Read when the stored state does not hash
// to the header digest.
var ErrDigestMismatch = errors.New("snapshot digest mismatch")

// New describes state as a snapshot of program.
func New(program, runID string, state *sim.State) (Snapshot, error) {
	digest, err := state.Digest()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Header: Header{
			Version: Version,
			Program: program,
			RunID:   runID,
			Tick:    state.Tick,
			Digest:  digest,
		},
		State: state,
	}, nil
}

// Write stores snap at path, creating parent directories.
func Write(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, snap); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes snap to w as a zstd stream.
func Encode(w io.Writer, snap Snapshot) error {
	state, err := snap.State.Canonical()
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	bw.Write(hb)
	bw.WriteByte('\n')
	bw.Write(state)
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read loads the snapshot at path and verifies its digest.
func Read(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Decode reads a snapshot from r and verifies its digest.
func Decode(r io.Reader) (Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Snapshot{}, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return Snapshot{}, fmt.Errorf("header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Snapshot{}, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return Snapshot{}, err
	}
	state, err := sim.DecodeState(body)
	if err != nil {
		return Snapshot{}, err
	}
	digest, err := state.Digest()
	if err != nil {
		return Snapshot{}, err
	}
	if digest != h.Digest {
		return Snapshot{}, fmt.Errorf("%w: header %s, state %s", ErrDigestMismatch, h.Digest, digest)
	}
	if state.Tick != h.Tick {
		return Snapshot{}, fmt.Errorf("header tick %d, state tick %d", h.Tick, state.Tick)
	}
	return Snapshot{Header: h, State: state}, nil
}
