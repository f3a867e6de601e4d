package schema

import _ "embed"

// ManifestV1Schema contains the JSON schema for ailab manifests.
//
//go:embed ailab.v1.json
var ManifestV1Schema []byte
