// Package media turns library files into thumbnail images.
//
// A [Generator] decodes an image (jpeg, png, gif, bmp, tiff or webp), scales
// it to fit a square bounding box and encodes the result as JPEG. Titles
// that are folders use the first decodable image found inside them, in name
// order, searching subfolders only when the folder itself has none. Videos
// are not thumbnailed.
//
// The database caches the output; this package never writes to disk.
//
// A [Warmer] fills that cache ahead of requests: it lists titles without a
// thumbnail and generates them on a workers.Pool, pausing while the memory
// monitor reports pressure.
package media
