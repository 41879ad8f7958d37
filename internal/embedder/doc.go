// Package embedder turns chunk and query text into vectors.
//
// Three providers are available: Jina AI and OpenAI over HTTP, and an offline
// token-hash embedder that needs no credentials. Provider choice comes from the
// embedding_function setting, or from the environment when none is set:
//
//  1. VECTORCODE_EMBEDDING_PROVIDER (jina, openai, local)
//  2. JINA_API_KEY present selects Jina
//  3. OPENAI_API_KEY present selects OpenAI
//  4. otherwise local
//
// Remote providers batch up to MaxBatchSize texts per call, retry transient
// failures with backoff, and keep an LRU cache keyed by the SHA-256 of the text.
//
//	emb, err := embedder.New(embedder.Config{Provider: "jina", Model: "jina-embeddings-v3"})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := embedder.EmbedTexts(ctx, emb, chunks)
//
// Name reports the provider/model pair recorded on a collection when it is
// created. Querying with an embedder of a different name is refused by the
// storage layer.
package embedder
