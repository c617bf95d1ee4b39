package simulation

import _ "embed"

// Canonical WGSL sources for the pipeline kernels. Each kernel also carries
// a host mirror of the same body so the headless device can execute it.

//go:embed shaders/apply_gravity.wgsl
var shaderApplyGravity string

//go:embed shaders/predict_position.wgsl
var shaderPredictPosition string

//go:embed shaders/morton_hash.wgsl
var shaderMortonHash string

//go:embed shaders/clear_histogram.wgsl
var shaderClearHistogram string

//go:embed shaders/radix_histogram.wgsl
var shaderRadixHistogram string

//go:embed shaders/radix_prefix_sum.wgsl
var shaderRadixPrefixSum string

//go:embed shaders/radix_scatter.wgsl
var shaderRadixScatter string

//go:embed shaders/clear_cell_index.wgsl
var shaderClearCellIndex string

//go:embed shaders/build_cell_index.wgsl
var shaderBuildCellIndex string

//go:embed shaders/neighbor_search.wgsl
var shaderNeighborSearch string

//go:embed shaders/density.wgsl
var shaderDensity string

//go:embed shaders/pbd_lambda.wgsl
var shaderPbdLambda string

//go:embed shaders/pbd_displacement.wgsl
var shaderPbdDisplacement string

//go:embed shaders/apply_displacement.wgsl
var shaderApplyDisplacement string

//go:embed shaders/update_position.wgsl
var shaderUpdatePosition string
