package bot

import "strings"

const codeBlockFence = "```"

// SplitMessage breaks text into chunks of at most limit characters, keeping
// fenced code blocks fenced in every chunk they span. A single unbreakable
// code line can still produce a chunk over the limit; the renderer sends
// those as files.
func SplitMessage(text string, limit int) []string {
	if strings.Contains(text, codeBlockFence) {
		return splitAtFences(text, limit)
	}

	return splitPlain(text, limit)
}

func splitAtFences(text string, limit int) []string {
	var result []string
	for i, part := range strings.Split(text, codeBlockFence) {
		// odd segments are inside a fence
		if i%2 == 1 {
			result = append(result, splitCodeBlock(part, limit)...)
		} else {
			result = append(result, splitPlain(part, limit)...)
		}
	}

	return result
}

func splitPlain(s string, limit int) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	if len(s) <= limit {
		return []string{s}
	}

	boundary := ""
	for _, candidate := range []string{"\n", " "} {
		if strings.Contains(s, candidate) {
			boundary = candidate
			break
		}
	}

	if boundary == "" {
		return append([]string{s[:limit]}, splitPlain(s[limit:], limit)...)
	}

	pieces := strings.Split(s, boundary)
	var result []string
	current := pieces[0]
	for _, piece := range pieces[1:] {
		if len(current)+len(boundary)+len(piece) > limit {
			result = append(result, current)
			current = piece
		} else {
			current += boundary + piece
		}
	}

	return append(result, current)
}

func splitCodeBlock(s string, limit int) []string {
	if len(codeBlockFence+s+codeBlockFence) <= limit {
		return []string{codeBlockFence + s + codeBlockFence}
	}

	result := []string{codeBlockFence}
	for _, line := range strings.Split(s, "\n") {
		last := len(result) - 1
		if len(result[last])+1+len(line) > limit {
			result[last] += codeBlockFence
			result = append(result, codeBlockFence+line)
		} else {
			result[last] += "\n" + line
		}
	}

	result[len(result)-1] += codeBlockFence
	return result
}
