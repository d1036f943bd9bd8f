package sim

import (
	"strconv"
	"strings"
)

// A Name is a hierarchical element name, tokenized at the dots.
type Name struct {
	Tokens []NameToken
}

// A NameToken is one level of a hierarchical name. Index carries the
// bracketed indices attached to the element, if any.
type NameToken struct {
	ElemName string
	Index    []int
}

// ParseName tokenizes a hierarchical name string.
func ParseName(sname string) Name {
	parts := strings.Split(sname, ".")

	name := Name{Tokens: make([]NameToken, len(parts))}
	for i, part := range parts {
		name.Tokens[i] = parseNameToken(part)
	}

	return name
}

func parseNameToken(token string) NameToken {
	bracketMustMatch(token)

	segments := strings.Split(token, "[")

	indices := make([]int, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		index, err := strconv.Atoi(strings.TrimSuffix(seg, "]"))
		if err != nil {
			panic("Name index must be integer")
		}

		indices = append(indices, index)
	}

	return NameToken{ElemName: segments[0], Index: indices}
}

func bracketMustMatch(token string) {
	depth := 0
	for _, c := range token {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				panic("Name bracket must match")
			}
		}
	}

	if depth != 0 {
		panic("Name bracket must match")
	}
}

// NameMustBeValid panics if the name breaks the naming convention:
// dot-separated hierarchy with no empty levels, each level a capitalized
// CamelCase word, and elements of a series indexed with square brackets
// (for example "Kernel.Driver[7].Channel[0]").
func NameMustBeValid(name string) {
	defer func() {
		if r := recover(); r != nil {
			panic("Name " + name + " is not valid: " + r.(string))
		}
	}()

	for _, token := range ParseName(name).Tokens {
		tokenMustBeValid(token)
	}
}

func tokenMustBeValid(token NameToken) {
	if token.ElemName == "" {
		panic("Name element must not be empty")
	}

	for _, c := range []string{"_", "\"", "'", "-"} {
		if strings.Contains(token.ElemName, c) {
			panic("Name element must not contain " + c)
		}
	}

	if token.ElemName[0] < 'A' || token.ElemName[0] > 'Z' {
		panic("Name element must start with a capital letter")
	}
}

// BuildName appends an element name to a parent name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex appends an indexed element name to a parent name.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}

// BuildNameWithMultiDimensionalIndex appends an element name carrying a
// multi-dimensional index to a parent name.
func BuildNameWithMultiDimensionalIndex(
	parentName, elementName string,
	index []int,
) string {
	name := BuildName(parentName, elementName)

	for _, i := range index {
		name += "[" + strconv.Itoa(i) + "]"
	}

	return name
}
