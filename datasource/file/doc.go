// Package file provides a Collection which reads JSON-lines data from a set of files on disk.
// Each file is a Partition, so it is favourable if individual files represent roughly
// equal-sized divisions of data.
package file
