/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * dashcam-core
 * Copyright (C) 2026 e1z0 <e1z0@icloud.com>
 *
 * This file is part of dashcam-core.
 *
 * dashcam-core is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * dashcam-core is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with dashcam-core.  If not, see <https://www.gnu.org/licenses/>.
 */

// dashcamplayer is a headless demo harness for the core: it loads a
// manifest, optionally attaches an NMEA telemetry log, plays the
// VideoFile to completion, and logs synchronized frame/location/event
// state as it goes. It mirrors QAnotherRTSP's main.go in spirit (flag
// parsing, astiav log callback wiring, early audio init) with the Qt
// application loop stripped out, since this core has no GUI.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	astiav "github.com/asticode/go-astiav"

	"github.com/e1z0/dashcam-core/internal/audiosink"
	"github.com/e1z0/dashcam-core/internal/codec"
	"github.com/e1z0/dashcam-core/internal/config"
	"github.com/e1z0/dashcam-core/internal/media"
	"github.com/e1z0/dashcam-core/internal/playback"
	"github.com/e1z0/dashcam-core/internal/telemetry"
	"github.com/e1z0/dashcam-core/session"
)

var version string
var build string

type logSink struct{}

func (logSink) OnStateChange(from, to media.PlaybackState) {
	log.Printf("session: %s -> %s", from, to)
}

func main() {
	manifestPath := flag.String("manifest", "", "path to a VideoFile YAML manifest")
	nmeaPath := flag.String("nmea", "", "path to an NMEA-0183 telemetry log (optional)")
	debugFF := flag.Bool("debugstreams", false, "enable verbose FFmpeg logging")
	aggressive := flag.Bool("aggressive-drift", false, "re-seek channels on catastrophic drift instead of only logging it")
	speed := flag.Float64("speed", 1.0, "initial playback speed multiplier")
	bufferCapacity := flag.Int("buffer-frames", 30, "per-channel frame buffer capacity")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("Running dashcam-core v%s (build: %s)", version, build)

	if *debugFF {
		astiav.SetLogLevel(astiav.LogLevelDebug)
		astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, fmt, msg string) {
			var cs string
			if c != nil {
				if cl := c.Class(); cl != nil {
					cs = " - class: " + cl.String()
				}
			}
			log.Printf("ffmpeg log: %s%s - level: %d\n", strings.TrimSpace(msg), cs, l)
		})
	}

	if *manifestPath == "" {
		log.Fatalf("missing -manifest")
	}
	file, err := config.Load(*manifestPath)
	if err != nil {
		log.Fatalf("loading manifest: %v", err)
	}

	var gpsPoints []media.GpsPoint
	if *nmeaPath != "" {
		gpsPoints, err = readNMEALog(*nmeaPath)
		if err != nil {
			log.Fatalf("loading telemetry: %v", err)
		}
	}

	if err := audiosink.InitGlobalContext(8000, 1); err != nil {
		log.Printf("audio init failed (continuing without audio): %v", err)
	}
	sink := audiosink.New()
	defer sink.Close()

	sess := session.New()
	sess.SetEventSink(logSink{})
	if *aggressive {
		sess.SetDriftPolicy(playback.DriftPolicyAggressive)
	}

	if err := sess.Load(file, *bufferCapacity, codec.OpenFFmpeg, gpsPoints); err != nil {
		log.Fatalf("load: %v", err)
	}
	sess.SetAudioSink(sink.Write)
	sess.SetSpeed(*speed)

	if err := sess.Play(); err != nil {
		log.Fatalf("play: %v", err)
	}

	for sess.State() != media.PlaybackCompleted && sess.State() != media.PlaybackError {
		time.Sleep(200 * time.Millisecond)
		frames := sess.SynchronizedFrames()
		loc := sess.LocationAt(sess.CurrentTime())
		log.Printf("t=%.2f/%.2f frames=%d buffering=%v location=%v",
			sess.CurrentTime(), sess.Duration(), len(frames), sess.IsBuffering(), loc)
	}

	log.Printf("playback finished in state %s; %d events detected", sess.State(), len(sess.Events()))
	sess.Stop()
}

// readNMEALog reads an NMEA-0183 log file line by line and parses it
// into GpsPoints via internal/telemetry.
func readNMEALog(path string) ([]media.GpsPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return telemetry.ParseLog(lines)
}
