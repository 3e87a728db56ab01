// Package wazevo is an ahead-of-time WebAssembly compiler and embedding runtime. A Store owns
// the compilation cache and every Instance created from it; a Linker resolves a Module's
// imports, either against host functions/globals/memories/tables defined on it, or against the
// exports of another Instance, and produces a new Instance.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#semantic-phases%E2%91%A0 for the
// decode/validate/instantiate/invoke phases this package's types correspond to:
// Module is decoded+validated, Instance is instantiated, Func/Global/Table/Memory are invoked.
package wazevo

// Version is the release version of this module, overridden by release tooling via -ldflags.
var Version = "dev"
