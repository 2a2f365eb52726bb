package scanner

import (
	"encoding/xml"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// unknownJavaVersion a descriptor was found but declared no Java level
const unknownJavaVersion = "unknown"

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomPlugin struct {
	ArtifactID    string `xml:"artifactId"`
	Configuration struct {
		Release string `xml:"release"`
		Source  string `xml:"source"`
		Target  string `xml:"target"`
	} `xml:"configuration"`
}

// pomProperties arbitrary <properties> children keyed by element name
type pomProperties map[string]string

func (p *pomProperties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	*p = pomProperties{}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			var v string
			if err := d.DecodeElement(&v, &el); err != nil {
				return err
			}
			(*p)[el.Name.Local] = strings.TrimSpace(v)
		case xml.EndElement:
			return nil
		}
	}
}

type pomProject struct {
	GroupID    string        `xml:"groupId"`
	ArtifactID string        `xml:"artifactId"`
	Version    string        `xml:"version"`
	Parent     pomParent     `xml:"parent"`
	Properties pomProperties `xml:"properties"`
	Modules    []string      `xml:"modules>module"`
	Plugins    []pomPlugin   `xml:"build>plugins>plugin"`
}

var propertyRef = regexp.MustCompile(`\$\{([^}]+)\}`)

func (p *pomProject) resolve(v string) string {
	return propertyRef.ReplaceAllStringFunc(v, func(ref string) string {
		key := ref[2 : len(ref)-1]
		switch key {
		case "project.version":
			return p.Version
		case "project.groupId":
			return p.GroupID
		}
		if val, ok := p.Properties[key]; ok && !strings.Contains(val, "${") {
			return val
		}
		return ref
	})
}

func (p *pomProject) javaVersion() string {
	for _, k := range []string{"java.version", "maven.compiler.release", "maven.compiler.target", "maven.compiler.source"} {
		if v := p.Properties[k]; v != "" {
			return p.resolve(v)
		}
	}
	for _, pl := range p.Plugins {
		if pl.ArtifactID != "maven-compiler-plugin" {
			continue
		}
		c := pl.Configuration
		for _, v := range []string{c.Release, c.Target, c.Source} {
			if v = strings.TrimSpace(v); v != "" {
				return p.resolve(v)
			}
		}
	}
	return ""
}

func parsePOM(content []byte) (*BuildInfo, error) {
	var pom pomProject
	if err := xml.Unmarshal(content, &pom); err != nil {
		return nil, err
	}
	if pom.GroupID == "" {
		pom.GroupID = pom.Parent.GroupID
	}
	if pom.Version == "" {
		pom.Version = pom.Parent.Version
	}

	modules := make([]string, 0, len(pom.Modules))
	for _, m := range pom.Modules {
		if m = strings.TrimSpace(m); m != "" {
			modules = append(modules, m)
		}
	}

	return &BuildInfo{
		Tool:        "maven",
		GroupID:     pom.resolve(strings.TrimSpace(pom.GroupID)),
		ArtifactID:  pom.resolve(strings.TrimSpace(pom.ArtifactID)),
		Version:     pom.resolve(strings.TrimSpace(pom.Version)),
		JavaVersion: pom.javaVersion(),
		Modules:     modules,
	}, nil
}

var (
	gradleGroup        = regexp.MustCompile(`(?m)^\s*group\s*=\s*['"]([^'"]+)['"]`)
	gradleVersion      = regexp.MustCompile(`(?m)^\s*version\s*=\s*['"]([^'"]+)['"]`)
	gradleSourceCompat = regexp.MustCompile(`(?m)(?:sourceCompatibility|targetCompatibility)\s*=\s*(?:JavaVersion\.VERSION_)?['"]?([0-9][0-9._]*)`)
	gradleToolchain    = regexp.MustCompile(`JavaLanguageVersion\.of\(\s*['"]?(\d+)`)
	gradleRootName     = regexp.MustCompile(`rootProject\.name\s*=\s*['"]([^'"]+)['"]`)
	gradleInclude      = regexp.MustCompile(`(?m)^\s*include\b(.*)$`)
	quoted             = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

func parseGradle(content []byte) *BuildInfo {
	src := string(content)
	info := &BuildInfo{Tool: "gradle"}
	if m := gradleGroup.FindStringSubmatch(src); m != nil {
		info.GroupID = m[1]
	}
	if m := gradleVersion.FindStringSubmatch(src); m != nil {
		info.Version = m[1]
	}
	if m := gradleToolchain.FindStringSubmatch(src); m != nil {
		info.JavaVersion = m[1]
	} else if m := gradleSourceCompat.FindStringSubmatch(src); m != nil {
		info.JavaVersion = strings.ReplaceAll(m[1], "_", ".")
	}
	return info
}

func parseGradleSettings(content []byte) (name string, modules []string) {
	src := string(content)
	if m := gradleRootName.FindStringSubmatch(src); m != nil {
		name = m[1]
	}
	for _, line := range gradleInclude.FindAllStringSubmatch(src, -1) {
		for _, q := range quoted.FindAllStringSubmatch(line[1], -1) {
			modules = append(modules, strings.TrimPrefix(q[1], ":"))
		}
	}
	return name, modules
}

func pathDepth(rel string) int {
	return strings.Count(rel, "/")
}

// extractBuildInfo picks the root-most descriptor. Maven wins over Gradle at
// equal depth. A missing Java level is filled from the first module
// descriptor that declares one.
func (s *Scanner) extractBuildInfo(st *scanState) *BuildInfo {
	if len(st.builds) == 0 {
		return nil
	}

	files := append([]string(nil), st.builds...)
	sort.SliceStable(files, func(i, j int) bool {
		if pathDepth(files[i]) != pathDepth(files[j]) {
			return pathDepth(files[i]) < pathDepth(files[j])
		}
		return files[i] < files[j]
	})

	var (
		primary  *BuildInfo
		fallback []*BuildInfo
		settings = map[string]string{} // dir -> settings file
	)
	for _, rel := range files {
		if !isUserCode(rel, "", "", nil) {
			continue
		}
		name := path.Base(rel)
		if strings.HasPrefix(name, "settings.gradle") {
			settings[path.Dir(rel)] = rel
			continue
		}

		content, err := os.ReadFile(filepath.Join(st.root, filepath.FromSlash(rel)))
		if err != nil {
			st.warn("skipped %s: %v", rel, err)
			continue
		}

		var info *BuildInfo
		if name == "pom.xml" {
			info, err = parsePOM(content)
			if err != nil {
				st.warn("skipped %s: invalid pom: %v", rel, err)
				continue
			}
		} else {
			info = parseGradle(content)
		}
		info.Path = rel

		switch {
		case primary == nil:
			primary = info
		case primary.Tool == "gradle" && info.Tool == "maven" && pathDepth(rel) == pathDepth(primary.Path):
			fallback = append(fallback, primary)
			primary = info
		default:
			fallback = append(fallback, info)
		}
	}

	if primary == nil {
		return nil
	}

	if primary.Tool == "gradle" {
		if sf, ok := settings[path.Dir(primary.Path)]; ok {
			if content, err := os.ReadFile(filepath.Join(st.root, filepath.FromSlash(sf))); err == nil {
				name, modules := parseGradleSettings(content)
				if primary.ArtifactID == "" {
					primary.ArtifactID = name
				}
				primary.Modules = append(primary.Modules, modules...)
			}
		}
	}

	if primary.JavaVersion == "" {
		for _, f := range fallback {
			if f.JavaVersion != "" {
				primary.JavaVersion = f.JavaVersion
				break
			}
		}
	}
	if primary.JavaVersion == "" {
		primary.JavaVersion = unknownJavaVersion
	}

	s.log.Debug("build descriptor resolved",
		zap.String("path", primary.Path),
		zap.String("tool", primary.Tool),
		zap.String("java_version", primary.JavaVersion))

	return primary
}
