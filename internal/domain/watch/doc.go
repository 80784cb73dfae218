// Package watch defines the core domain model of the appliance: motion
// events produced by the sensor monitor, recording sessions owned by the
// coordinator, and the process-wide system state snapshot.
package watch
