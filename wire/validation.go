package wire

import "strings"

const sharePrefix = "$share/"

func validateTopicName(topic string) error {
	if topic == "" {
		return ErrInvalidTopicName
	}
	if strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopicName
	}
	for _, seg := range strings.Split(topic, "/") {
		if seg == "" {
			return ErrInvalidTopicName
		}
	}
	return nil
}

// ValidateTopicName validates a PUBLISH topic name: no wildcards, no empty
// segments (spec §9).
func ValidateTopicName(topic string) error { return validateTopicName(topic) }

// ValidateTopicFilter validates a SUBSCRIBE/UNSUBSCRIBE topic filter,
// including the optional `$share/<group>/<filter>` shared-subscription
// prefix (spec §4.6, GLOSSARY).
func ValidateTopicFilter(filter string) error {
	_, inner, err := SplitShared(filter)
	if err != nil {
		return err
	}
	if inner == "" {
		return ErrInvalidTopicFilter
	}
	levels := strings.Split(inner, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return ErrInvalidTopicFilter
		}
		if strings.Contains(level, "+") && level != "+" {
			return ErrInvalidTopicFilter
		}
	}
	return nil
}

// SplitShared splits a `$share/<group>/<filter>` filter into its group and
// plain-filter parts. For a non-shared filter it returns ("", filter, nil).
func SplitShared(filter string) (group, plainFilter string, err error) {
	if !strings.HasPrefix(filter, sharePrefix) {
		return "", filter, nil
	}
	rest := filter[len(sharePrefix):]
	idx := strings.IndexByte(rest, '/')
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", ErrInvalidTopicFilter
	}
	group = rest[:idx]
	plainFilter = rest[idx+1:]
	if strings.Contains(group, "+") || strings.Contains(group, "#") {
		return "", "", ErrInvalidTopicFilter
	}
	return group, plainFilter, nil
}
