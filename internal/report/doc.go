// Package report renders disk images as Graphviz diagrams.
//
// Two reports exist. The mbr report is a table of the MBR fields followed by
// every partition and every logical partition's EBR. The disk report draws
// the disk as one row of regions (MBR, partitions, free space) labelled with
// their share of the disk, with the extended partition expanded in place.
//
// The .dot source is always written next to the requested output. The image
// itself is produced by the dot binary, chosen by the output extension.
package report
