// Package stereodepth converts rectified stereo image pairs into metric depth
// maps for a dense-mapping pipeline.
//
// A pluggable DisparitySource produces a per-pixel disparity field from the
// pair; DepthProvider applies the closed-form disparity-to-depth conversion
// and range clipping, producing a 16-bit millimeter depth map in which
// InvalidDepth marks pixels with no reliable depth.
package stereodepth
