package storage

import (
	"fmt"
	"path"
	"strings"
)

// ProductImagePath is the object key for a seller's product image upload.
func ProductImagePath(sellerID, productID, uploadID, fileName string) (string, error) {
	segments, err := validateSegments(map[string]string{"sellerID": sellerID, "productID": productID, "uploadID": uploadID})
	if err != nil {
		return "", err
	}
	name, err := validateFileName(fileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("products/%s/%s/%s/%s", segments["sellerID"], segments["productID"], segments["uploadID"], name), nil
}

// ReturnEvidencePath is the object key for a photo attached to a return request.
func ReturnEvidencePath(customerID, orderItemID, uploadID, fileName string) (string, error) {
	segments, err := validateSegments(map[string]string{"customerID": customerID, "orderItemID": orderItemID, "uploadID": uploadID})
	if err != nil {
		return "", err
	}
	name, err := validateFileName(fileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("returns/%s/%s/%s/%s", segments["customerID"], segments["orderItemID"], segments["uploadID"], name), nil
}

// IsOwnedPath reports whether objectPath lives under prefix, e.g. "returns/<customerID>/".
func IsOwnedPath(objectPath, prefix string) bool {
	cleaned := path.Clean("/" + strings.TrimSpace(objectPath))
	return strings.HasPrefix(cleaned, "/"+strings.Trim(prefix, "/")+"/")
}

func validateSegments(values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for name, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("storage: %s is required", name)
		}
		if strings.ContainsAny(value, "/\\") || strings.Contains(value, "..") {
			return nil, fmt.Errorf("storage: %s contains invalid path characters", name)
		}
		out[name] = value
	}
	return out, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(value, "/\\") || strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	return value, nil
}
