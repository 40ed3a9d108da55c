// Package addrplan computes the deterministic address plan for an
// organization: a fixed bit-prefix split of the root block into zones, and
// per-role site subnets derived from a site's ordinal within its zone.
//
// The planner is a pure function of its inputs. Same root block, zone count,
// ordinal and role table always produce the same subnets, so a plan can be
// recomputed at any time for audit or conflict checking. Persistence of the
// resulting allocations is the caller's job.
package addrplan
