package chels

import "github.com/bdshadow/che-ls-jdt/internal/store"

// Public type aliases for internal store types reachable through the Engine
// API. These are Go type aliases (=) — identical to the internal types at
// compile time.

type Store = store.Store
type File = store.File
type Supertype = store.Supertype
