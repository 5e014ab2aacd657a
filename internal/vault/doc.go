// Package vault wires the state core together: one authority guard and one
// pause gate shared by named supply ledgers and asset registries, bootstrapped
// from declarative YAML definitions and driven by a sequential admin
// operation runner. Every mutating path stays behind the guard; the vault
// adds lookup, genesis and batching, never its own authorization rules.
package vault
