package objectstore

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildKey turns a blob id "{version}~{hash}" into the key suffix
// "{version}/{hash}". Only the first "~" is rewritten.
func BuildKey(id string) string {
	return strings.Replace(id, "~", "/", 1)
}

// BuildURL addresses key in bucket on endpoint. Virtual-host style puts the
// bucket into the hostname ("https://bucket.host/key"); path style keeps it
// in the path ("https://host/bucket/key").
func BuildURL(endpoint, bucket, key string, virtualHost bool) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}

	base := strings.TrimSuffix(u.Path, "/")
	key = strings.TrimPrefix(key, "/")

	if virtualHost {
		u.Host = bucket + "." + u.Host
		u.Path = base + "/" + key
	} else {
		u.Path = base + "/" + bucket + "/" + key
	}
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}
