// Package interfaces defines the data model, consumed capabilities and error
// taxonomy of the IP registration workflow engine.
//
// # Requests
//
// RegistrationRequest combines a RegistrationTarget (ExistingNFT or MintTarget)
// with optional derivative data, license terms, royalty shares and metadata.
// A request is identified by its position in the caller's input slice and that
// index is carried unchanged through every pipeline stage.
//
// # Capabilities
//
//   - ChainBackend: simulate, submit and confirm calls against one chain
//   - TypedDataSigner: EIP-712 signing, required at engine construction
//   - StorageBackend: content-addressed metadata storage
//
// # Errors
//
// Every error surfaced by the engine is a *StageError naming the stage that
// produced it. The wrapped cause is one of the typed errors in errors.go and
// can be matched with errors.As:
//
//	var revert *interfaces.SimulationRevertError
//	if errors.As(err, &revert) {
//	    log.Warn("dry run reverted", "reason", revert.Reason)
//	}
//
// # Units
//
// Percentages are accepted in the 0-100 range and converted to the on-chain
// parts-per-hundred-million unit by multiplying with PercentScale (10^6).
package interfaces
