package registry

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"rtkbatch/pkg/contract"
	"rtkbatch/plugins/extractor/erp"
	"rtkbatch/plugins/extractor/rinex"
	"rtkbatch/plugins/extractor/sp3"
	rfs "rtkbatch/plugins/reader/filesystem"
	rexec "rtkbatch/plugins/runner/exec"
	rmock "rtkbatch/plugins/runner/mock"
	wfs "rtkbatch/plugins/writer/filesystem"
)

// strictDecode: 以 KnownFields 严格解码 Options 子树，拒绝未知字段。
// yaml.Node.Decode 不支持 KnownFields，故先回写为字节再解码。
func strictDecode(n *yaml.Node, v any) error {
	if n == nil || n.Kind == 0 {
		// 保持零值（默认选项）
		return nil
	}
	raw, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return nil
}

// Extractors 返回类别 → 日期提取器（固定绑定，不可配置）。
// 每次调用返回新表，调用方可自行替换条目。
func Extractors() map[contract.Category]contract.Extractor {
	return map[contract.Category]contract.Extractor{
		contract.Rover: rinex.Obs{},
		contract.Base:  rinex.Obs{},
		contract.Nav:   rinex.Nav{},
		contract.SP3:   sp3.Orbit{},
		contract.Clock: rinex.Clock{},
		contract.ERP:   erp.Orientation{},
	}
}

// NewRunner 工厂签名：接收原样 YAML Options（可为 nil）。
type NewRunner func(opts *yaml.Node) (contract.Runner, error)

// NewScanner 工厂签名。
type NewScanner func(opts *yaml.Node) (contract.Expander, error)

// NewWriter 工厂签名。
type NewWriter func(opts *yaml.Node) (contract.Writer, error)

// Runner 工厂注册表（显式、零反射）。
var Runner = map[string]NewRunner{
	// exec: 启动外部求解器进程
	"exec": func(n *yaml.Node) (contract.Runner, error) {
		var opts rexec.Options
		if err := strictDecode(n, &opts); err != nil {
			return nil, err
		}
		return rexec.New(&opts), nil
	},
	// mock: 进程内替身，按 -o 生成结果文件（演练/测试）
	"mock": func(n *yaml.Node) (contract.Runner, error) {
		var opts rmock.Options
		if err := strictDecode(n, &opts); err != nil {
			return nil, err
		}
		return rmock.New(&opts)
	},
}

// Scanner 工厂注册表。
var Scanner = map[string]NewScanner{
	// fs: 本地文件系统目录扫描
	"fs": func(n *yaml.Node) (contract.Expander, error) {
		var opts rfs.Options
		if err := strictDecode(n, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(n *yaml.Node) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictDecode(n, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}
