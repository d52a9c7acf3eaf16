// Package proc reads and writes the memory of the target process.
//
// Values are reached through pointer chains, walked again on every
// access because the target moves the objects they go through. Feature
// switches are single bits or bytes (Cell) or groups of them written
// together (Composite). A chain that runs into address zero or unmapped
// memory resolves to the null location; reads and writes through it are
// no-ops that report failure.
package proc
