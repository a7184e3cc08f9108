// Package storageopt 提供 storage 族共享的小型工具：带计数的健康探活
// 与慢回源检测器。
//
// 本包是 internal 包，仅供 pkg/storage 下的子包（xstore、xcache）使用。
//
// 依赖策略: 慢回源检测器的异步钩子依赖低层工具包 pkg/util/xpool，
// 依赖链为 pkg/storage → internal/storageopt → pkg/util/xpool，不构成循环依赖。
package storageopt
