// Package sniffer identifies avatar images by their leading bytes rather than
// by the name or content type the browser claimed.
package sniffer

import (
	"bytes"
	"errors"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeGIF  MediaType = "gif"
	TypeWEBP MediaType = "webp"
	TypeAVIF MediaType = "avif"
	TypeSVG  MediaType = "svg"
)

// HeadSize is how many leading bytes Sniff looks at.
const HeadSize = 512

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

// Ext is the file extension, with dot, conventionally used for the type.
func (r Result) Ext() string {
	switch r.Type {
	case TypeJPEG:
		return ".jpg"
	case "":
		return ""
	default:
		return "." + string(r.Type)
	}
}

type signature struct {
	result Result
	match  func(head []byte) bool
}

var signatures = []signature{
	{Result{TypeJPEG, "image/jpeg"}, isJPEG},
	{Result{TypePNG, "image/png"}, isPNG},
	{Result{TypeGIF, "image/gif"}, isGIF},
	{Result{TypeWEBP, "image/webp"}, isWEBP},
	{Result{TypeAVIF, "image/avif"}, isAVIF},
	{Result{TypeSVG, "image/svg+xml"}, isSVG},
}

func Sniff(data []byte) (Result, error) {
	head := data
	if len(head) > HeadSize {
		head = head[:HeadSize]
	}
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}
	for _, sig := range signatures {
		if sig.match(head) {
			return sig.result, nil
		}
	}
	return Result{}, ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func isPNG(head []byte) bool {
	return bytes.HasPrefix(head, pngMagic)
}

func isGIF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a"))
}

func isWEBP(head []byte) bool {
	return len(head) >= 12 &&
		bytes.Equal(head[:4], []byte("RIFF")) &&
		bytes.Equal(head[8:12], []byte("WEBP"))
}

func isAVIF(head []byte) bool {
	return len(head) >= 12 &&
		string(head[4:8]) == "ftyp" &&
		bytes.Contains(head[8:], []byte("avif"))
}

func isSVG(head []byte) bool {
	trimmed := strings.ToLower(strings.TrimSpace(string(head)))
	if strings.HasPrefix(trimmed, "<svg") {
		return true
	}
	return strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg")
}
