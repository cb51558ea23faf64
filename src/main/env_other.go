//go:build !windows

package main

import (
	"log"

	"kakao-autopilot/src/screenshot"
)

func enableDPIAwareness() {}

func logMonitorConfiguration() {
	r, err := screenshot.PrimaryRegion()
	if err != nil {
		log.Printf("MONITOR: primary display unavailable: %v", err)
		return
	}
	log.Printf("MONITOR: primary %s", r)
}
