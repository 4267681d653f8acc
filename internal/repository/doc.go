// Package repository defines the contract shared by every spatial record
// engine and the engine-neutral composed [Query].
//
// Engines live in sub-packages: memory is the reference implementation used
// as the correctness oracle, jsonl persists records in a JSON Lines file.
//
// Engines that cannot run a [Query] natively delegate to [Evaluate].
package repository
