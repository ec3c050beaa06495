// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

/*
Package vpk provides read, resolve, verify, and write operations for
VPK (Valve Pak) directory files in three dialects: classic v1, classic
v2 with MD5 integrity sections, and the Respawn-engine variant with
chunked LZHAM payloads and a compressed-audio sub-format. The directory
model round-trips byte for byte: parsing a directory file and
serializing the resulting tree reproduces the original image.

Entry payloads may live inline in the directory file, appended after
the tree, or split across numbered external archive parts. The package
never opens archive parts on its own; the caller registers byte
sources (buffered files, memory-mapped views, or in-memory buffers)
for the archive indexes it wants resolvable.

# Reading

Open a directory file and list or read entries:

	d, err := vpk.Open("pak01_dir.vpk")
	if err != nil {
	    return err
	}
	defer d.Close()

	reg := vpk.NewRegistry()
	defer reg.Close()
	for i := range 3 {
	    src, err := vpk.OpenFile(fmt.Sprintf("pak01_%03d.vpk", i))
	    if err != nil {
	        return err
	    }
	    reg.Register(uint16(i), src)
	}

	for _, ref := range d.Entries() {
	    data, _ := d.ReadFile(ref.FullPath(), reg, vpk.ResolveOptions{})
	    // use data
	}

Large archive parts benefit from memory-mapped sources on platforms
that support them:

	src, err := vpk.OpenMmap("pak01_000.vpk")
	if err != nil {
	    return err
	}
	reg.Register(0, src)

To restrict a scan to one extension:

	d, err := vpk.OpenWithOptions("pak01_dir.vpk", vpk.LoadOptions{
	    FilterExtension: "vtf",
	})

# Verifying

Per-entry CRC checks are caller-invoked, either inline during resolve
or as a separate pass:

	data, err := d.ReadFile("materials/brick.vtf", reg, vpk.ResolveOptions{
	    VerifyCRC: true,
	})

	if err := d.VerifyEntry("materials/brick.vtf", reg); err != nil {
	    // errors.Is(err, vpk.ErrIntegrity) on checksum mismatch
	}

Version 2 directories additionally carry MD5 sections:

	if err := d.VerifyTreeMD5(); err != nil {
	    return err
	}
	if err := d.VerifyArchiveMD5(reg); err != nil {
	    return err
	}

# Writing

Build a directory file from a tree:

	tree := vpk.NewTree()
	if err := tree.InsertPath("scripts/main.txt", &vpk.Entry{
	    CRC:           crc32.ChecksumIEEE(payload),
	    ArchiveIndex:  vpk.IndexDir,
	    Offset:        0,
	    Length:        uint32(len(payload)),
	}); err != nil {
	    return err
	}
	data, err := vpk.BuildDirectory(vpk.DialectV1, tree, vpk.BuildOptions{})

An already-parsed directory serializes back directly:

	if err := d.Serialize(f); err != nil {
	    return err
	}

# Respawn audio

Respawn archives store certain audio entries as chunked sample data
described by CAM sidecar files. ReadAudio rebuilds a playable WAV;
which paths receive decoding is rule-driven
(github.com/woozymasta/pathrules), defaulting to "*.wav":

	camData, err := os.ReadFile("client_mp_common.bsp.pak000_000.vpk.cam")
	if err != nil {
	    return err
	}
	cam, err := vpk.ParseCam(camData)
	if err != nil {
	    return err
	}
	wav, err := d.ReadAudio("sound/weapons/fire.wav", reg,
	    map[uint16]*vpk.Cam{0: cam}, vpk.AudioOptions{})
*/
package vpk
