// Package mediatypes classifies library files by extension.
//
// It has no dependencies so the indexer, the thumbnail pipeline and the HTTP
// handlers can share it without import cycles.
//
//	mediatypes.IsMediaFile("/media/Show/ep1.mkv")    // true, indexed as an item
//	mediatypes.CanThumbnail("/media/Show/cover.jpg") // true, decodable image
//	mediatypes.GetMimeType(".png")                    // "image/png"
package mediatypes
