package cluster

import (
	"fmt"
	"sort"
	"strings"
)

// An ImageTable maps an OS family, then a region, to a
// machine image id.
type ImageTable map[string]map[string]string

// DefaultImages lists the stock images for each supported
// OS family.
var DefaultImages = ImageTable{
	"ubuntu": {
		"us-east-1": "ami-6d720012",
		"us-east-2": "ami-23c4fb46",
		"us-west-2": "ami-e580c79d",
	},
	"amazon": {
		"us-east-1": "ami-ca4464b5",
		"us-east-2": "ami-16f8c073",
		"us-west-2": "ami-f275218a",
	},
}

// Lookup finds the image for an OS family in a region.
func (i ImageTable) Lookup(family, region string) (string, error) {
	regions, ok := i[family]
	if !ok {
		return "", &ConfigError{
			Field:  "linux_type",
			Reason: fmt.Sprintf("unknown OS family %q (known: %s)", family, strings.Join(i.Families(), ", ")),
		}
	}
	image, ok := regions[region]
	if !ok {
		return "", &ConfigError{
			Field:  "region",
			Reason: fmt.Sprintf("no %s image for region %q", family, region),
		}
	}
	return image, nil
}

// Families returns the sorted OS families in the table.
func (i ImageTable) Families() []string {
	var res []string
	for family := range i {
		res = append(res, family)
	}
	sort.Strings(res)
	return res
}

// Merge returns a copy of the table with entries from
// other added or replaced.
func (i ImageTable) Merge(other ImageTable) ImageTable {
	res := ImageTable{}
	for _, table := range []ImageTable{i, other} {
		for family, regions := range table {
			if res[family] == nil {
				res[family] = map[string]string{}
			}
			for region, image := range regions {
				res[family][region] = image
			}
		}
	}
	return res
}
