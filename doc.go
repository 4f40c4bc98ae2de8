// Package rtcore is a small robotics/automation runtime that bridges a real-time
// control loop to a heterogeneous set of peripheral devices: EtherCAT servo drives,
// serial LIDAR scanners, USB 6-DOF input devices, and a Module/Channel adapter that
// uniformly exposes analog, digital and encoder I/O. Each device driver lives in its
// own self-contained package (the LIDAR and servo drivers under drivers/, the 6-DOF
// driver in sixdof/); an application wires them
// together, see cmd/rtcored for an example.
package rtcore
