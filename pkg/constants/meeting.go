// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Meeting session limits
const (
	// DefaultMeetingCapacity is the concurrently-active participant ceiling used when
	// neither the meeting nor the service configuration sets one.
	DefaultMeetingCapacity = 50

	// MaxMeetingCapacity bounds the per-meeting capacity override.
	MaxMeetingCapacity = 1000

	// MaxMeetingDurationMinutes is the maximum scheduled duration of a meeting in minutes
	MaxMeetingDurationMinutes = 600

	// MaxDisplayNameLength is the longest display name accepted on join.
	MaxDisplayNameLength = 100
)

// Session sweep defaults
const (
	// DefaultSessionTTL is how long a session may stay open without any leave signal
	// before the sweeper force-closes it.
	DefaultSessionTTL = 12 * time.Hour

	// DefaultSessionSweepInterval is how often the sweeper looks for stale sessions.
	DefaultSessionSweepInterval = 5 * time.Minute

	// DefaultRoomTokenTTL is the validity of a provider access token.
	DefaultRoomTokenTTL = 6 * time.Hour
)

// JoinCodeBytes is the number of random bytes encoded into a join code.
const JoinCodeBytes = 8
