// Package coordinator implements the motion-triggered recording state
// machine. It consumes debounced motion events, enforces the enable and
// cooldown policy, owns the camera gate exclusively for the recording
// window, drives the alarm, and hands finished artifacts to the notifier.
//
// The coordinator is the single writer of the system state. External
// callers interact through the control surface (SetMotionEnabled,
// TriggerAlarm, Snapshot, SnapshotFrame); everything else flows through
// the event bus as fire-and-forget announcements.
package coordinator
