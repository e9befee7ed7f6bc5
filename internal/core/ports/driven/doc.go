// Package driven lists what the core needs from infrastructure.
//
// Storage is mandatory: ArchiveStore, NodeStore, ProposalStore,
// KeywordIndex, VectorIndex and ConfigStore must all be wired before any
// service is built.
//
// Model capabilities are not. A nil EmbeddingService disables dense search
// and blocks approval, since approved chunks must be embedded. A nil
// LLMService leaves the SemanticSplitter unset and the ContextEnricher on
// its metadata prefix. A nil Reranker leaves results in fused order, and a
// nil Notifier just means nobody hears about finished sweeps.
//
// Nothing here may import an adapter.
package driven
