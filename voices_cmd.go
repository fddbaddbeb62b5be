package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/studynotes/internal/synth"
	"github.com/dgnsrekt/studynotes/internal/voice"
)

const sayTimeout = 2 * time.Minute

var (
	selectVoice int

	voicesCmd = &cobra.Command{
		Use:   "voices",
		Short: "List Spanish voices and choose one",
		Long: paragraph(fmt.Sprintf("\n%s the Spanish voices of the installed speech engine. The marked voice is used for speaking; %s saves a different one.",
			keyword("List"), keyword("--select"))),
		Example: paragraph("studynotes voices\nstudynotes voices --select 2"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, closer, err := listVoices()
			if err != nil {
				return err
			}
			defer closer() //nolint:errcheck

			if cmd.Flags().Changed("select") {
				if selectVoice < 0 || selectVoice >= len(sel.Voices()) {
					return fmt.Errorf("no voice %d: choose between 0 and %d", selectVoice, len(sel.Voices())-1)
				}
				sel.SetSelectedIndex(selectVoice)
			}

			writeVoices(cmd.OutOrStdout(), sel.State())
			writeCacheStats(cmd.OutOrStdout())
			return nil
		},
	}

	sayCmd = &cobra.Command{
		Use:     "say TEXT",
		Short:   "Speak a phrase with the chosen voice",
		Long:    paragraph(fmt.Sprintf("\n%s a phrase aloud and wait until it has been spoken.", keyword("Say"))),
		Example: paragraph("studynotes say \"¿Dónde está la biblioteca?\""),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return say(cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
)

func init() {
	voicesCmd.Flags().IntVar(&selectVoice, "select", 0, "save the voice at this index as the preferred voice")
}

// catalog lists a backend's voices without opening the audio device.
type catalog struct {
	backend synth.Backend
}

func (c catalog) Voices() []voice.Voice { return c.backend.Voices() }
func (catalog) Cancel()                 {}
func (catalog) OnVoicesChanged(func())  {}

func (catalog) Speak(_ voice.Utterance, ev voice.Events) {
	ev.Fail(errors.New("voice listing cannot speak"))
}

func listVoices() (*voice.Selector, func() error, error) {
	store, err := preferenceStore()
	if err != nil {
		return nil, nil, err
	}
	backend, err := synth.Detect(synthConfig())
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	closer := func() error { return nil }
	var engine voice.Engine
	if backend != nil {
		engine = catalog{backend}
		if c, ok := backend.(io.Closer); ok {
			closer = c.Close
		}
	}
	return voice.New(engine, store), closer, nil
}

func writeVoices(w io.Writer, st voice.State) {
	if !st.Supported {
		fmt.Fprintln(w, paragraph("\nNo speech engine found. Install piper or gtts-cli and ffmpeg.")) //nolint:errcheck
		return
	}
	if len(st.Voices) == 0 {
		fmt.Fprintln(w, paragraph("\nNo Spanish voices available.")) //nolint:errcheck
		return
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, v := range st.Voices {
		marker := "  "
		if i == st.SelectedIndex {
			marker = keyword("▸ ")
		}
		kind := "network"
		if v.LocalService {
			kind = "local"
		}
		fmt.Fprintf(&b, "%s%d  %s  %s\n", marker, i, v.Name, faint(v.Lang+" · "+kind))
	}
	fmt.Fprint(w, paragraph(b.String())+"\n") //nolint:errcheck
}

func writeCacheStats(w io.Writer) {
	c, err := audioCache()
	if err != nil {
		log.Debug("Could not open audio cache", "err", err)
		return
	}
	defer c.Close() //nolint:errcheck

	st := c.DiskStats()
	if st.Capacity == 0 {
		return
	}
	fmt.Fprintln(w, paragraph(faint(fmt.Sprintf("Audio cache: %s of %s in %s clips", //nolint:errcheck
		humanize.IBytes(uint64(st.Size)), humanize.IBytes(uint64(st.Capacity)), humanize.Comma(st.Items))))) //nolint:gosec
}

// awaitEngine reports when an utterance finishes or fails.
type awaitEngine struct {
	voice.Engine

	once sync.Once
	done chan error
}

func (e *awaitEngine) Speak(u voice.Utterance, ev voice.Events) {
	e.Engine.Speak(u, voice.Events{
		OnStart: ev.OnStart,
		OnEnd: func() {
			ev.End()
			e.finish(nil)
		},
		OnError: func(err error) {
			ev.Fail(err)
			e.finish(err)
		},
	})
}

func (e *awaitEngine) finish(err error) {
	e.once.Do(func() { e.done <- err })
}

func say(w io.Writer, text string) error {
	done := make(chan error, 1)
	sp, err := newSpeech(func(e voice.Engine) voice.Engine {
		return &awaitEngine{Engine: e, done: done}
	})
	if err != nil {
		return err
	}
	defer sp.Close() //nolint:errcheck

	if !sp.selector.Supported() {
		return errors.New("speech synthesis is not supported on this machine")
	}

	if v, ok := sp.selector.Selected(); ok {
		fmt.Fprintln(w, faint("Speaking with "+v.Name)) //nolint:errcheck
	}
	sp.selector.Speak(text)

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("unable to speak: %w", err)
		}
		return nil
	case <-time.After(sayTimeout):
		sp.selector.Cancel()
		return errors.New("timed out waiting for speech to finish")
	}
}
