// Package region 维护固定的地域表：节点列表、粗粒度位置码到地域的映射
package region

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Region 一个物理服务地域
type Region struct {
	Name     string `yaml:"name" json:"name"`
	Location string `yaml:"location" json:"location"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// tableFile 地域表 yaml 文件结构
type tableFile struct {
	Fallback string            `yaml:"fallback"`
	Regions  []Region          `yaml:"regions"`
	Lookup   map[string]string `yaml:"lookup"` // 位置码 -> 地域名
}

// Registry 地域注册表
type Registry struct {
	regions  []Region
	byName   map[string]Region
	lookup   map[string]string
	fallback string
}

// 内置地域表：四个固定地域，未识别位置兜底到 us-east
var builtin = tableFile{
	Fallback: "us-east",
	Regions: []Region{
		{Name: "us-east", Location: "Ashburn, VA", Endpoint: "https://us-east.fetch-gateway.dev"},
		{Name: "us-west", Location: "San Jose, CA", Endpoint: "https://us-west.fetch-gateway.dev"},
		{Name: "eu-west", Location: "Dublin", Endpoint: "https://eu-west.fetch-gateway.dev"},
		{Name: "ap-southeast", Location: "Singapore", Endpoint: "https://ap-southeast.fetch-gateway.dev"},
	},
	Lookup: map[string]string{
		"US": "us-east", "CA": "us-east", "MX": "us-east", "BR": "us-east",
		"GB": "eu-west", "DE": "eu-west", "FR": "eu-west", "NL": "eu-west",
		"SG": "ap-southeast", "JP": "ap-southeast", "AU": "ap-southeast", "IN": "ap-southeast",
		"WEST-US": "us-west",
	},
}

// NewRegistry 创建地域注册表
// tablePath 为空时使用内置表，否则从 yaml 文件加载
func NewRegistry(tablePath string) (*Registry, error) {
	table := builtin
	if tablePath != "" {
		data, err := os.ReadFile(tablePath)
		if err != nil {
			return nil, fmt.Errorf("读取地域表失败: %w", err)
		}
		var loaded tableFile
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("解析地域表失败: %w", err)
		}
		if len(loaded.Regions) == 0 {
			return nil, fmt.Errorf("地域表为空: %s", tablePath)
		}
		table = loaded
	}

	r := &Registry{
		regions:  table.Regions,
		byName:   make(map[string]Region, len(table.Regions)),
		lookup:   table.Lookup,
		fallback: table.Fallback,
	}
	for _, reg := range table.Regions {
		r.byName[reg.Name] = reg
	}

	if _, ok := r.byName[r.fallback]; !ok {
		return nil, fmt.Errorf("兜底地域 %s 不在地域表中", r.fallback)
	}
	return r, nil
}

// List 返回全部地域
func (r *Registry) List() []Region {
	return r.regions
}

// Valid 判断是否为已知地域名
func (r *Registry) Valid(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Lookup 将粗粒度位置码映射到地域名，未识别时返回兜底地域。
// 供外部边缘调度层按来源地选节点使用，网关自身不做跨区调度
func (r *Registry) Lookup(code string) string {
	if name, ok := r.lookup[code]; ok {
		if _, known := r.byName[name]; known {
			return name
		}
	}
	return r.fallback
}

// Fallback 返回兜底地域名
func (r *Registry) Fallback() string {
	return r.fallback
}
