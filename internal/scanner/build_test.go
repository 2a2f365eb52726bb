package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parentPOM = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <modelVersion>4.0.0</modelVersion>
  <parent>
    <groupId>com.acme</groupId>
    <artifactId>acme-parent</artifactId>
    <version>2.1.0</version>
  </parent>
  <artifactId>shop</artifactId>
  <properties>
    <revision>ignored</revision>
    <java.version>17</java.version>
  </properties>
  <modules>
    <module>shop-api</module>
    <module>shop-core</module>
  </modules>
</project>
`

const modulePOM = `<project>
  <groupId>com.acme</groupId>
  <artifactId>shop-core</artifactId>
  <version>${project.parent.version}</version>
  <build>
    <plugins>
      <plugin>
        <artifactId>maven-compiler-plugin</artifactId>
        <configuration>
          <release>${jdk}</release>
        </configuration>
      </plugin>
    </plugins>
  </build>
  <properties>
    <jdk>11</jdk>
  </properties>
</project>
`

func TestParsePOM(t *testing.T) {
	info, err := parsePOM([]byte(parentPOM))
	require.NoError(t, err)

	assert.Equal(t, "maven", info.Tool)
	assert.Equal(t, "com.acme", info.GroupID)
	assert.Equal(t, "shop", info.ArtifactID)
	assert.Equal(t, "2.1.0", info.Version)
	assert.Equal(t, "17", info.JavaVersion)
	assert.Equal(t, []string{"shop-api", "shop-core"}, info.Modules)
}

func TestParsePOM_CompilerPlugin(t *testing.T) {
	info, err := parsePOM([]byte(modulePOM))
	require.NoError(t, err)

	assert.Equal(t, "11", info.JavaVersion)
}

func TestParsePOM_Invalid(t *testing.T) {
	_, err := parsePOM([]byte("<project><groupId>"))
	assert.Error(t, err)
}

func TestParseGradle(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		group   string
		version string
		java    string
	}{
		{
			name:    "groovy dsl with source compatibility",
			src:     "plugins { id 'java' }\ngroup = 'com.acme'\nversion = '0.3.0-SNAPSHOT'\nsourceCompatibility = '1.8'\n",
			group:   "com.acme",
			version: "0.3.0-SNAPSHOT",
			java:    "1.8",
		},
		{
			name:    "kotlin dsl with toolchain",
			src:     "group = \"io.shop\"\nversion = \"1.0\"\njava {\n  toolchain {\n    languageVersion.set(JavaLanguageVersion.of(21))\n  }\n}\n",
			group:   "io.shop",
			version: "1.0",
			java:    "21",
		},
		{
			name: "java version constant",
			src:  "sourceCompatibility = JavaVersion.VERSION_1_8\n",
			java: "1.8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := parseGradle([]byte(tt.src))
			assert.Equal(t, "gradle", info.Tool)
			assert.Equal(t, tt.group, info.GroupID)
			assert.Equal(t, tt.version, info.Version)
			assert.Equal(t, tt.java, info.JavaVersion)
		})
	}
}

func TestParseGradleSettings(t *testing.T) {
	name, modules := parseGradleSettings([]byte("rootProject.name = 'shop'\ninclude 'api', ':core'\ninclude(\"web\")\n"))

	assert.Equal(t, "shop", name)
	assert.Equal(t, []string{"api", "core", "web"}, modules)
}

func TestScanner_Scan_BuildInfo(t *testing.T) {
	t.Run("root pom wins", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"pom.xml":                parentPOM,
			"shop-core/pom.xml":      modulePOM,
			"target/classes/pom.xml": "<project><groupId>x</groupId></project>",
		})

		result, err := newTestScanner(t).Scan(context.Background(), root)
		require.NoError(t, err)
		require.NotNil(t, result.Build)

		assert.Equal(t, "pom.xml", result.Build.Path)
		assert.Equal(t, "shop", result.Build.ArtifactID)
		assert.Equal(t, "17", result.Build.JavaVersion)
	})

	t.Run("java version taken from module", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"pom.xml":           "<project><groupId>com.acme</groupId><artifactId>shop</artifactId><version>1</version></project>",
			"shop-core/pom.xml": modulePOM,
		})

		result, err := newTestScanner(t).Scan(context.Background(), root)
		require.NoError(t, err)
		require.NotNil(t, result.Build)
		assert.Equal(t, "11", result.Build.JavaVersion)
	})

	t.Run("gradle with settings", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"build.gradle":    "group = 'com.acme'\nversion = '2.0'\n",
			"settings.gradle": "rootProject.name = 'billing'\ninclude 'api'\n",
		})

		result, err := newTestScanner(t).Scan(context.Background(), root)
		require.NoError(t, err)
		require.NotNil(t, result.Build)

		assert.Equal(t, "gradle", result.Build.Tool)
		assert.Equal(t, "billing", result.Build.ArtifactID)
		assert.Equal(t, []string{"api"}, result.Build.Modules)
		assert.Equal(t, unknownJavaVersion, result.Build.JavaVersion)
	})

	t.Run("invalid pom is a warning", func(t *testing.T) {
		root := writeTree(t, map[string]string{"pom.xml": "<project>"})

		result, err := newTestScanner(t).Scan(context.Background(), root)
		require.NoError(t, err)
		assert.Nil(t, result.Build)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "invalid pom")
	})
}
